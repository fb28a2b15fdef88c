package notification

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

const DefaultInboxLimit = 50

var ErrCenterClosed = errors.New("notification center is closed")

// Source returns the inbox snapshot of the session user.
type Source interface {
	ListNotifications(ctx context.Context) (Snapshot, error)
}

// Center là trung tâm thông báo của một người dùng: danh sách thông báo và số chưa đọc.
// The unread badge is a dedup-guarded counter, so a notification pushed twice, or pushed after
// it already arrived in the snapshot, is counted once.
type Center struct {
	userID  string
	inbox   *reconcile.Feed[Notification]
	unread  *reconcile.Counter
	badge   *event.Fanout[int]
	manager *realtime.Manager
	subID   realtime.SubscriptionID

	mu     sync.Mutex
	closed bool
}

func NewCenter(userID string, dedupCacheSize int) *Center {
	return &Center{
		userID: userID,
		inbox: reconcile.NewFeed[Notification]("notifications:"+userID,
			reconcile.WithLimit(DefaultInboxLimit),
			reconcile.WithSeenCacheSize(dedupCacheSize),
		),
		unread: reconcile.NewCounter(dedupCacheSize),
		badge:  event.NewFanout[int]("badge:" + userID),
	}
}

// Load seeds the inbox and the badge from the REST snapshot.
func (c *Center) Load(ctx context.Context, source Source) error {
	snapshot, err := source.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	for _, n := range snapshot.Notifications {
		c.unread.MarkSeen(n.ID)
	}
	c.inbox.Seed(snapshot.Notifications)
	c.unread.Reset(snapshot.UnreadCount)
	c.publishBadge()
	return nil
}

// Attach consumes ReceiveNotification events of manager. Notifications are addressed to the
// group named after the user id.
func (c *Center) Attach(ctx context.Context, manager *realtime.Manager) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCenterClosed
	}
	c.manager = manager
	c.subID = manager.On(event.KindNotification, c.handle)
	c.mu.Unlock()

	if err := manager.JoinGroup(ctx, c.userID); err != nil {
		return fmt.Errorf("failed to join notification group: %w", err)
	}
	return nil
}

// Receive folds one pushed notification. It reports whether it was new.
func (c *Center) Receive(n Notification) bool {
	if n.RecipientID != "" && n.RecipientID != c.userID {
		return false
	}
	if !c.inbox.Apply(n) {
		return false
	}
	if !n.IsRead && c.unread.Increment(n.ID) {
		c.publishBadge()
	}
	return true
}

// MarkRead updates the local badge once a notification has been read. Repeating it is a no-op.
func (c *Center) MarkRead(notificationID string) bool {
	var found, wasUnread bool
	for _, n := range c.inbox.Items() {
		if n.ID == notificationID {
			found, wasUnread = true, !n.IsRead
			c.inbox.Update(n, func(old, _ Notification) Notification {
				old.IsRead = true
				return old
			})
			break
		}
	}
	if !found || !wasUnread {
		return false
	}

	if !c.unread.Decrement(notificationID) {
		return false
	}
	c.publishBadge()
	return true
}

// Unread returns the badge count.
func (c *Center) Unread() int {
	return c.unread.Value()
}

// Notifications returns the inbox, oldest first.
func (c *Center) Notifications() []Notification {
	return c.inbox.Items()
}

// Subscribe streams the inbox after every change.
func (c *Center) Subscribe() chan []Notification {
	return c.inbox.Subscribe()
}

func (c *Center) Unsubscribe(ch chan []Notification) {
	c.inbox.Unsubscribe(ch)
}

// SubscribeUnread streams the badge count after every change.
func (c *Center) SubscribeUnread() chan int {
	ch := make(chan int, 4)
	c.badge.Register(ch)
	return ch
}

func (c *Center) UnsubscribeUnread(ch chan int) {
	c.badge.Unregister(ch)
}

// Close detaches the center. Pushes delivered afterwards are discarded.
func (c *Center) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	manager, subID := c.manager, c.subID
	c.mu.Unlock()

	if manager != nil {
		manager.Off(subID)
	}
	c.inbox.Close()
	c.badge.Close()
}

func (c *Center) publishBadge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.badge.Broadcast(c.unread.Value())
	}
}

func (c *Center) handle(evt event.StreamEvent) {
	var n Notification
	if err := evt.Into(&n); err != nil {
		log.Warn().Err(err).Msg("failed to decode notification")
		return
	}

	if c.Receive(n) {
		log.Debug().
			Str("user_id", c.userID).
			Str("notification_id", n.ID).
			Str("type", n.Type).
			Msg("notification received")
	}
}
