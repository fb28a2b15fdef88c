package backend

import (
	"context"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/autobid"
)

type upsertAutoBidRequest struct {
	MaxAmount int64 `json:"max_amount"`
}

// GetAutoBid returns the auto-bid of the session user, or nil when none is configured.
// userID is implied by the session token.
func (c *Client) GetAutoBid(ctx context.Context, auctionID string, userID string) (*autobid.Config, error) {
	var config autobid.Config
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("auctionID", auctionID).
		SetResult(&config).
		Get("/users/me/auctions/{auctionID}/auto-bid")
	err = checkResponse("get auto-bid", resp, err)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// UpsertAutoBid creates the auto-bid or replaces its ceiling.
func (c *Client) UpsertAutoBid(ctx context.Context, auctionID string, userID string, maxAmount int64) (autobid.Config, error) {
	var config autobid.Config
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("auctionID", auctionID).
		SetBody(upsertAutoBidRequest{MaxAmount: maxAmount}).
		SetResult(&config).
		Put("/users/me/auctions/{auctionID}/auto-bid")
	if err = checkResponse("upsert auto-bid", resp, err); err != nil {
		return autobid.Config{}, err
	}

	return config, nil
}

// DeactivateAutoBid turns the auto-bid off. A missing auto-bid is already inactive.
func (c *Client) DeactivateAutoBid(ctx context.Context, auctionID string, userID string) error {
	resp, err := c.request().
		SetContext(ctx).
		SetPathParam("auctionID", auctionID).
		Delete("/users/me/auctions/{auctionID}/auto-bid")
	err = checkResponse("deactivate auto-bid", resp, err)
	if apperror.IsNotFound(err) {
		return nil
	}

	return err
}
