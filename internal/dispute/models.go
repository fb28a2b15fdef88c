package dispute

import "time"

// Dispute is the metadata returned by the dispute read endpoint.
type Dispute struct {
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	ResolvedBy *string   `json:"resolved_by"`
	AuctionID  *string   `json:"auction_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is one chat message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	AuctionID  *string   `json:"auction_id,omitempty"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

func (m Message) Key() string          { return m.ID }
func (m Message) Timestamp() time.Time { return m.SentAt }
