package reconcile

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultSeenCacheSize = 4096

// Counter is an unread-style counter that tolerates replays.
// Every change is guarded by a dedup key: replaying the same key is a no-op, so an event
// delivered twice can never count twice. The value never goes below zero.
type Counter struct {
	mu    sync.Mutex
	value int
	seen  *lru.Cache
}

func NewCounter(seenCacheSize int) *Counter {
	if seenCacheSize <= 0 {
		seenCacheSize = DefaultSeenCacheSize
	}
	// lru.New only fails for a non-positive size
	seen, _ := lru.New(seenCacheSize)
	return &Counter{seen: seen}
}

// Increment adds one for key unless key was already applied. It reports whether it applied.
func (c *Counter) Increment(key string) bool {
	return c.apply("inc:"+key, 1)
}

// Decrement removes one for key (e.g. a notification marked as read).
func (c *Counter) Decrement(key string) bool {
	return c.apply("dec:"+key, -1)
}

// Reset seeds the counter from an authoritative snapshot. Keys already applied stay remembered,
// so a push replayed after the snapshot is still ignored.
func (c *Counter) Reset(value int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value < 0 {
		value = 0
	}
	c.value = value
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// MarkSeen remembers key without counting it, for items that arrived in a snapshot.
func (c *Counter) MarkSeen(key string) {
	c.seen.Add("inc:"+key, struct{}{})
}

func (c *Counter) apply(key string, delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if found, _ := c.seen.ContainsOrAdd(key, struct{}{}); found {
		return false
	}

	c.value += delta
	if c.value < 0 {
		c.value = 0
	}
	return true
}
