package reconcile

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/katatrina/gundam-live/internal/event"
	"github.com/rs/zerolog/log"
)

// Feed owns one reconciled sequence and publishes a copy of it after every change.
// Both producers of a stream (push events and REST polling) write into the same Feed;
// dedup by key is what makes the dual source safe.
type Feed[T Item] struct {
	name    string
	limit   int
	seen    *lru.Cache
	updates *event.Fanout[[]T]

	mu     sync.Mutex
	items  []T
	closed bool
}

// FeedOption cấu hình Feed
type FeedOption func(*feedOptions)

type feedOptions struct {
	limit    int
	seenSize int
}

// WithLimit keeps only the newest n items. Keys of dropped items are still remembered so a
// late replay cannot bring them back.
func WithLimit(n int) FeedOption {
	return func(o *feedOptions) {
		o.limit = n
	}
}

// WithSeenCacheSize bounds how many keys are remembered for dedup.
func WithSeenCacheSize(n int) FeedOption {
	return func(o *feedOptions) {
		o.seenSize = n
	}
}

func NewFeed[T Item](name string, opts ...FeedOption) *Feed[T] {
	options := feedOptions{seenSize: DefaultSeenCacheSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.seenSize <= 0 {
		options.seenSize = DefaultSeenCacheSize
	}
	seen, _ := lru.New(options.seenSize)

	return &Feed[T]{
		name:    name,
		limit:   options.limit,
		seen:    seen,
		updates: event.NewFanout[[]T](name),
	}
}

// Seed folds a REST snapshot into the feed and returns how many items were new.
func (f *Feed[T]) Seed(snapshot []T) int {
	added := 0
	f.mutate(func(items []T) []T {
		for _, item := range snapshot {
			if f.seen.Contains(item.Key()) {
				continue
			}
			f.seen.Add(item.Key(), struct{}{})
			items = Reconcile(items, item)
			added++
		}
		return items
	}, func() bool { return added > 0 })
	return added
}

// Apply folds one item and reports whether it was new.
func (f *Feed[T]) Apply(item T) bool {
	added := false
	f.mutate(func(items []T) []T {
		if found, _ := f.seen.ContainsOrAdd(item.Key(), struct{}{}); found {
			return items
		}
		added = true
		return Reconcile(items, item)
	}, func() bool { return added })
	return added
}

// Update merges an item that intentionally changes an existing one (same key).
// Unknown keys are inserted like Apply.
func (f *Feed[T]) Update(item T, merge func(old, incoming T) T) {
	f.mutate(func(items []T) []T {
		f.seen.Add(item.Key(), struct{}{})
		return Upsert(items, item, merge)
	}, func() bool { return true })
}

// Items returns a copy of the sequence, oldest first.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

// Subscribe registers for sequence updates. The channel is closed when the feed closes.
func (f *Feed[T]) Subscribe() chan []T {
	ch := make(chan []T, 4)
	f.updates.Register(ch)
	return ch
}

// Unsubscribe releases a channel returned by Subscribe.
func (f *Feed[T]) Unsubscribe(ch chan []T) {
	f.updates.Unregister(ch)
}

// Close discards every later write: responses that arrive after the owning view is gone
// must not touch its state.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.updates.Close()
}

func (f *Feed[T]) mutate(fn func([]T) []T, changed func() bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		log.Debug().Str("feed", f.name).Msg("feed closed, discarding update")
		return
	}

	items := fn(f.items)
	if f.limit > 0 && len(items) > f.limit {
		items = items[len(items)-f.limit:]
	}
	f.items = items

	if !changed() {
		return
	}

	// broadcast under the lock so subscribers see snapshots in mutation order
	snapshot := make([]T, len(items))
	copy(snapshot, items)
	f.updates.Broadcast(snapshot)
}
