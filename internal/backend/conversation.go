package backend

import (
	"context"

	"github.com/katatrina/gundam-live/internal/dispute"
)

// GetConversation fetches the messages exchanged between two users, optionally scoped to an auction.
func (c *Client) GetConversation(ctx context.Context, userA, userB string, auctionID *string) ([]dispute.Message, error) {
	var messages []dispute.Message
	req := c.request().
		SetContext(ctx).
		SetQueryParam("user_a", userA).
		SetQueryParam("user_b", userB).
		SetResult(&messages)
	if auctionID != nil && *auctionID != "" {
		req.SetQueryParam("auction_id", *auctionID)
	}

	resp, err := req.Get("/conversations")
	if err = checkResponse("get conversation", resp, err); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetDispute fetches dispute metadata.
func (c *Client) GetDispute(ctx context.Context, disputeID string) (dispute.Dispute, error) {
	var d dispute.Dispute
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("disputeID", disputeID).
		SetResult(&d).
		Get("/disputes/{disputeID}")
	if err = checkResponse("get dispute", resp, err); err != nil {
		return dispute.Dispute{}, err
	}

	return d, nil
}
