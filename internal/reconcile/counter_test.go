package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterNeverDoubleCounts(t *testing.T) {
	counter := NewCounter(16)

	assert.True(t, counter.Increment("n1"))
	assert.False(t, counter.Increment("n1"))
	assert.True(t, counter.Increment("n2"))
	assert.Equal(t, 2, counter.Value())

	assert.True(t, counter.Decrement("n1"))
	assert.False(t, counter.Decrement("n1"))
	assert.Equal(t, 1, counter.Value())
}

func TestCounterNeverGoesNegative(t *testing.T) {
	counter := NewCounter(0)

	counter.Decrement("n1")
	counter.Decrement("n2")
	assert.Zero(t, counter.Value())

	counter.Reset(-3)
	assert.Zero(t, counter.Value())
}

func TestCounterResetKeepsSeenKeys(t *testing.T) {
	counter := NewCounter(16)
	counter.Increment("n1")
	counter.MarkSeen("n2")

	counter.Reset(5)

	assert.False(t, counter.Increment("n1"))
	assert.False(t, counter.Increment("n2"))
	assert.True(t, counter.Increment("n3"))
	assert.Equal(t, 6, counter.Value())
}
