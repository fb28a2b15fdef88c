package autobid

import "time"

// State of the auto-bid of one user on one auction.
type State string

const (
	StateNotConfigured State = "not_configured"
	StateActive        State = "active"
	StateUpdated       State = "updated"
	StateDeactivated   State = "deactivated"
)

// Config is the auto-bid as stored by the backend. The store is authoritative.
type Config struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	MaxAmount int64     `json:"max_amount"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
