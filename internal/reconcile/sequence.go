// Package reconcile folds snapshots and at-least-once, possibly reordered push deliveries
// into ordered, duplicate-free sequences.
package reconcile

import "time"

// Item is anything that can be reconciled: it has an identity and a point in time.
type Item interface {
	Key() string
	Timestamp() time.Time
}

// Reconcile returns existing with incoming folded in.
// An item whose key is already present is ignored. Otherwise it is inserted after every item
// with a timestamp at or before its own, so ties keep arrival order.
// existing must already be ordered; it is never modified.
func Reconcile[T Item](existing []T, incoming T) []T {
	return Upsert(existing, incoming, nil)
}

// Upsert is Reconcile for events that intentionally update an item: when the key is present,
// merge(old, incoming) replaces the old item in place. A nil merge keeps the old item.
func Upsert[T Item](existing []T, incoming T, merge func(old, incoming T) T) []T {
	key := incoming.Key()
	for i, item := range existing {
		if item.Key() != key {
			continue
		}
		if merge == nil {
			return existing
		}
		out := make([]T, len(existing))
		copy(out, existing)
		out[i] = merge(item, incoming)
		return out
	}

	at := insertionIndex(existing, incoming.Timestamp())
	out := make([]T, 0, len(existing)+1)
	out = append(out, existing[:at]...)
	out = append(out, incoming)
	out = append(out, existing[at:]...)
	return out
}

func insertionIndex[T Item](items []T, ts time.Time) int {
	// walk from the back: push deliveries are almost always the newest item
	i := len(items)
	for i > 0 && items[i-1].Timestamp().After(ts) {
		i--
	}
	return i
}
