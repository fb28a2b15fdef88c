package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanoutBroadcast(t *testing.T) {
	fanout := NewFanout[int]("test")
	a := make(chan int, 1)
	b := make(chan int, 1)
	fanout.Register(a)
	fanout.Register(b)

	fanout.Broadcast(1)
	assert.Equal(t, 1, <-a)
	assert.Equal(t, 1, <-b)
}

func TestFanoutSkipsSlowClient(t *testing.T) {
	fanout := NewFanout[int]("test")
	slow := make(chan int, 1)
	fanout.Register(slow)

	fanout.Broadcast(1)
	fanout.Broadcast(2)

	assert.Equal(t, 1, <-slow)
	select {
	case v := <-slow:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestFanoutUnregisterAndClose(t *testing.T) {
	fanout := NewFanout[int]("test")
	a := make(chan int, 1)
	b := make(chan int, 1)
	fanout.Register(a)
	fanout.Register(b)

	fanout.Unregister(a)
	fanout.Unregister(a)
	_, ok := <-a
	assert.False(t, ok)

	fanout.Close()
	fanout.Close()
	_, ok = <-b
	assert.False(t, ok)

	// no panic after close
	fanout.Broadcast(3)

	late := make(chan int, 1)
	fanout.Register(late)
	_, ok = <-late
	assert.False(t, ok)
}
