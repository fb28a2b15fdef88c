package dispute

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/katatrina/gundam-live/internal/event"
	"github.com/katatrina/gundam-live/internal/realtime"
	"github.com/katatrina/gundam-live/internal/reconcile"
	"github.com/rs/zerolog/log"
)

// LiveThread keeps an assembled thread up to date with the chat stream. Live messages go through
// the same relevance predicate as the assembled ones before they are merged.
type LiveThread struct {
	base    Thread
	feed    *reconcile.Feed[Message]
	manager *realtime.Manager
	subID   realtime.SubscriptionID

	mu     sync.Mutex
	closed bool
}

var ErrThreadClosed = errors.New("dispute thread is closed")

func NewLiveThread(thread Thread, opts ...reconcile.FeedOption) *LiveThread {
	feed := reconcile.NewFeed[Message]("dispute:"+thread.DisputeID, opts...)
	feed.Seed(thread.Messages)

	base := thread
	base.Messages = nil
	return &LiveThread{
		base: base,
		feed: feed,
	}
}

// Attach starts consuming ReceiveMessage events of manager and joins group (the user's own id).
func (t *LiveThread) Attach(ctx context.Context, manager *realtime.Manager, group string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrThreadClosed
	}
	t.manager = manager
	t.subID = manager.On(event.KindMessage, t.handle)
	t.mu.Unlock()

	if err := manager.JoinGroup(ctx, group); err != nil {
		return fmt.Errorf("failed to join message group: %w", err)
	}
	return nil
}

// Receive merges one live message. It reports whether the thread changed.
func (t *LiveThread) Receive(msg Message) bool {
	if !t.base.Relevant(msg) {
		log.Debug().
			Str("dispute_id", t.base.DisputeID).
			Str("message_id", msg.ID).
			Msg("ignoring message outside the dispute")
		return false
	}
	return t.feed.Apply(msg)
}

// Thread returns the current thread.
func (t *LiveThread) Thread() Thread {
	thread := t.base
	thread.Messages = t.feed.Items()
	return thread
}

// Subscribe streams the message list after every change.
func (t *LiveThread) Subscribe() chan []Message {
	return t.feed.Subscribe()
}

// Unsubscribe releases a channel returned by Subscribe.
func (t *LiveThread) Unsubscribe(ch chan []Message) {
	t.feed.Unsubscribe(ch)
}

// Close detaches from the manager. Messages delivered afterwards are discarded.
func (t *LiveThread) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	manager, subID := t.manager, t.subID
	t.mu.Unlock()

	if manager != nil {
		manager.Off(subID)
	}
	t.feed.Close()
}

func (t *LiveThread) handle(evt event.StreamEvent) {
	var msg Message
	if err := evt.Into(&msg); err != nil {
		log.Warn().Err(err).Msg("failed to decode chat message")
		return
	}
	t.Receive(msg)
}
