package notification

import (
	"time"
)

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	ReferenceID string    `json:"reference_id"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

func (n Notification) Key() string          { return n.ID }
func (n Notification) Timestamp() time.Time { return n.CreatedAt }

// Snapshot is the REST view of the inbox used to seed the badge.
type Snapshot struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
