package backend

import (
	"context"

	"github.com/katatrina/gundam-live/internal/notification"
)

// ListNotifications fetches the inbox of the session user.
func (c *Client) ListNotifications(ctx context.Context) (notification.Snapshot, error) {
	var snapshot notification.Snapshot
	resp, err := c.request().
		SetContext(ctx).
		SetResult(&snapshot).
		Get("/users/me/notifications")
	if err = checkResponse("list notifications", resp, err); err != nil {
		return notification.Snapshot{}, err
	}

	return snapshot, nil
}
