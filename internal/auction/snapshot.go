package auction

import "time"

// Snapshot is the auction as returned by the backend read endpoint.
// Timestamps stay raw so that malformed values can be detected by ParseTiming.
type Snapshot struct {
	ID            string  `json:"id"`
	StartTime     *string `json:"start_time"`
	EndTime       string  `json:"end_time"`
	PausedAt      *string `json:"paused_at"`
	Status        string  `json:"status"`
	CurrentPrice  int64   `json:"current_price"`
	StartingPrice int64   `json:"starting_price"`
	TotalBids     int64   `json:"total_bids"`

	// set on pushed AuctionUpdated events
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Timing parses the timing fields. See ParseTiming for the degradation rules.
func (s Snapshot) Timing() (Timing, error) {
	return ParseTiming(s.StartTime, s.EndTime, s.PausedAt, s.Status)
}

// CurrentBid is the price a new bid has to beat.
func (s Snapshot) CurrentBid() int64 {
	if s.TotalBids == 0 && s.CurrentPrice == 0 {
		return s.StartingPrice
	}
	return s.CurrentPrice
}

// Bid is one accepted bid, as seen in the ticker.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (b Bid) Key() string          { return b.ID }
func (b Bid) Timestamp() time.Time { return b.CreatedAt }
