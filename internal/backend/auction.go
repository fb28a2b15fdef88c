package backend

import (
	"context"

	"github.com/katatrina/gundam-live/internal/auction"
)

// GetAuction fetches the auction snapshot.
func (c *Client) GetAuction(ctx context.Context, auctionID string) (auction.Snapshot, error) {
	var snapshot auction.Snapshot
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("auctionID", auctionID).
		SetResult(&snapshot).
		Get("/auctions/{auctionID}")
	if err = checkResponse("get auction", resp, err); err != nil {
		return auction.Snapshot{}, err
	}

	return snapshot, nil
}

// ListAuctionBids fetches the most recent accepted bids of an auction.
func (c *Client) ListAuctionBids(ctx context.Context, auctionID string) ([]auction.Bid, error) {
	var bids []auction.Bid
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("auctionID", auctionID).
		SetResult(&bids).
		Get("/auctions/{auctionID}/bids")
	if err = checkResponse("list auction bids", resp, err); err != nil {
		return nil, err
	}

	return bids, nil
}
