package api

import (
	"sync"
)

// viewRegistry tracks the views currently streamed, keyed by what they show, so that other
// requests on the same key can reach the live state: auto-bid validation reads the live price
// of an auction, mark-read updates the open notification centers of a user.
type viewRegistry[T comparable] struct {
	mu    sync.RWMutex
	views map[string]map[T]struct{}
}

func newViewRegistry[T comparable]() *viewRegistry[T] {
	return &viewRegistry[T]{
		views: make(map[string]map[T]struct{}),
	}
}

func (r *viewRegistry[T]) add(key string, view T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.views[key] == nil {
		r.views[key] = make(map[T]struct{})
	}
	r.views[key][view] = struct{}{}
}

func (r *viewRegistry[T]) remove(key string, view T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.views[key], view)
	if len(r.views[key]) == 0 {
		delete(r.views, key)
	}
}

// lookup returns any open view of key.
func (r *viewRegistry[T]) lookup(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for view := range r.views[key] {
		return view, true
	}
	var zero T
	return zero, false
}

// all returns every open view of key.
func (r *viewRegistry[T]) all(key string) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.views[key]))
	for view := range r.views[key] {
		out = append(out, view)
	}
	return out
}
