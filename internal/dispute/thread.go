package dispute

import (
	"slices"
	"time"

	"github.com/katatrina/gundam-live/internal/reconcile"
)

// Thread is an assembled dispute conversation, sorted by SentAt. It is a value: Append returns
// a new Thread and leaves the receiver untouched.
type Thread struct {
	DisputeID    string        `json:"dispute_id"`
	Participants []string      `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	Grace        time.Duration `json:"-"`
	Messages     []Message     `json:"messages"`
}

// Relevant reports whether msg belongs to the thread: both ends are participants and it was
// sent no earlier than the dispute creation minus the grace window.
func (t Thread) Relevant(msg Message) bool {
	if !slices.Contains(t.Participants, msg.SenderID) || !slices.Contains(t.Participants, msg.ReceiverID) {
		return false
	}
	return !msg.SentAt.Before(t.CreatedAt.Add(-t.Grace))
}

// Append folds a live message into the thread. It reports false when the message is not
// relevant or is already present.
func (t Thread) Append(msg Message) (Thread, bool) {
	if !t.Relevant(msg) {
		return t, false
	}

	messages := reconcile.Reconcile(t.Messages, msg)
	if len(messages) == len(t.Messages) {
		return t, false
	}

	next := t
	next.Messages = messages
	return next, true
}
