package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	snapshot Snapshot
	err      error
}

func (s fakeSource) ListNotifications(context.Context) (Snapshot, error) {
	return s.snapshot, s.err
}

func notificationOf(id string, read bool, offset time.Duration) Notification {
	return Notification{
		ID:          id,
		RecipientID: "user-1",
		Title:       "Bạn đã bị trả giá cao hơn",
		Type:        "auction",
		IsRead:      read,
		CreatedAt:   createdAt.Add(offset),
	}
}

func loadedCenter(t *testing.T) *Center {
	t.Helper()

	center := NewCenter("user-1", 64)
	t.Cleanup(center.Close)

	err := center.Load(context.Background(), fakeSource{snapshot: Snapshot{
		Notifications: []Notification{
			notificationOf("n1", true, 0),
			notificationOf("n2", false, time.Minute),
		},
		UnreadCount: 1,
	}})
	require.NoError(t, err)
	return center
}

func TestLoadSeedsInboxAndBadge(t *testing.T) {
	center := loadedCenter(t)

	assert.Equal(t, 1, center.Unread())
	require.Len(t, center.Notifications(), 2)
	assert.Equal(t, "n1", center.Notifications()[0].ID)
}

func TestLoadError(t *testing.T) {
	center := NewCenter("user-1", 64)
	defer center.Close()

	err := center.Load(context.Background(), fakeSource{err: apperror.ErrConnection})
	assert.True(t, errors.Is(err, apperror.ErrConnection))
	assert.Zero(t, center.Unread())
}

func TestReceiveCountsOnce(t *testing.T) {
	center := loadedCenter(t)
	badge := center.SubscribeUnread()

	assert.True(t, center.Receive(notificationOf("n3", false, 2*time.Minute)))
	assert.False(t, center.Receive(notificationOf("n3", false, 2*time.Minute)))

	// already part of the snapshot
	assert.False(t, center.Receive(notificationOf("n2", false, time.Minute)))

	assert.Equal(t, 2, center.Unread())
	assert.Equal(t, 2, <-badge)
	assert.Len(t, center.Notifications(), 3)
}

func TestReceiveIgnoresOtherRecipients(t *testing.T) {
	center := loadedCenter(t)

	other := notificationOf("n9", false, time.Hour)
	other.RecipientID = "user-2"

	assert.False(t, center.Receive(other))
	assert.Equal(t, 1, center.Unread())
}

func TestMarkRead(t *testing.T) {
	center := loadedCenter(t)
	center.Receive(notificationOf("n3", false, 2*time.Minute))
	require.Equal(t, 2, center.Unread())

	assert.True(t, center.MarkRead("n3"))
	assert.False(t, center.MarkRead("n3"))
	assert.False(t, center.MarkRead("n1"))
	assert.False(t, center.MarkRead("missing"))
	assert.Equal(t, 1, center.Unread())

	for _, n := range center.Notifications() {
		if n.ID == "n3" {
			assert.True(t, n.IsRead)
		}
	}
}

func TestCloseDiscardsLatePushes(t *testing.T) {
	center := NewCenter("user-1", 64)
	inbox := center.Subscribe()
	badge := center.SubscribeUnread()

	center.Close()
	center.Close()

	_, ok := <-inbox
	assert.False(t, ok)
	_, ok = <-badge
	assert.False(t, ok)

	assert.False(t, center.Receive(notificationOf("n1", false, 0)))
	assert.Empty(t, center.Notifications())
}

func TestAttachAfterClose(t *testing.T) {
	center := NewCenter("user-1", 64)
	center.Close()

	manager := realtime.NewManager("test", nil)
	defer manager.Stop()

	err := center.Attach(context.Background(), manager)
	assert.ErrorIs(t, err, ErrCenterClosed)
}

func TestAttachRacesClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		center := NewCenter("user-1", 64)
		manager := realtime.NewManager("test", nil)

		var wg sync.WaitGroup
		var attachErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			attachErr = center.Attach(context.Background(), manager)
		}()
		go func() {
			defer wg.Done()
			center.Close()
		}()
		wg.Wait()

		if attachErr != nil {
			assert.ErrorIs(t, attachErr, ErrCenterClosed)
		}
		assert.False(t, center.Receive(notificationOf("n1", false, 0)))
		manager.Stop()
	}
}
