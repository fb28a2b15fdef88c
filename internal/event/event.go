package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind phân loại sự kiện đẩy từ hub.
type Kind string

const (
	KindBid          Kind = "bid"
	KindMessage      Kind = "message"
	KindNotification Kind = "notification"
)

// Tên sự kiện mà hub phát ra
const (
	HubEventBidPlaced           = "BidPlaced"
	HubEventAuctionUpdated      = "AuctionUpdated"
	HubEventReceiveMessage      = "ReceiveMessage"
	HubEventReceiveNotification = "ReceiveNotification"
)

// Tên phương thức gọi lên hub
const (
	HubMethodJoinGroup  = "JoinGroup"
	HubMethodLeaveGroup = "LeaveGroup"
)

// KindOf maps a hub event name to its stream kind.
func KindOf(hubEvent string) (Kind, bool) {
	switch hubEvent {
	case HubEventBidPlaced, HubEventAuctionUpdated:
		return KindBid, true
	case HubEventReceiveMessage:
		return KindMessage, true
	case HubEventReceiveNotification:
		return KindNotification, true
	default:
		return "", false
	}
}

// AuctionGroup is the broadcast group carrying bids of one auction.
func AuctionGroup(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

// StreamEvent is one push delivery. Two events with the same ID are the same logical event
// no matter how many times they were delivered.
type StreamEvent struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (e StreamEvent) Key() string          { return e.ID }
func (e StreamEvent) Timestamp() time.Time { return e.OccurredAt }

// envelope lists the identity and time fields the backend uses across payload types.
type envelope struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
	SentAt     time.Time `json:"sent_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decode turns a raw hub event into a StreamEvent.
func Decode(hubEvent string, payload json.RawMessage) (StreamEvent, error) {
	kind, ok := KindOf(hubEvent)
	if !ok {
		return StreamEvent{}, fmt.Errorf("unknown hub event %q", hubEvent)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return StreamEvent{}, fmt.Errorf("failed to decode %s payload: %w", hubEvent, err)
	}
	if env.ID == "" {
		return StreamEvent{}, fmt.Errorf("%s payload has no id", hubEvent)
	}

	occurredAt := firstNonZero(env.OccurredAt, env.CreatedAt, env.SentAt, env.UpdatedAt)
	if occurredAt.IsZero() {
		return StreamEvent{}, fmt.Errorf("%s payload %s has no timestamp", hubEvent, env.ID)
	}

	return StreamEvent{
		ID:         env.ID,
		Kind:       kind,
		Name:       hubEvent,
		Payload:    payload,
		OccurredAt: occurredAt,
	}, nil
}

// Into decodes the payload of e into v.
func (e StreamEvent) Into(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s event %s: %w", e.Name, e.ID, err)
	}
	return nil
}

func firstNonZero(times ...time.Time) time.Time {
	for _, t := range times {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
