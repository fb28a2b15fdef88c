package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/auction"
	"github.com/katatrina/gundam-live/internal/live"
	"github.com/katatrina/gundam-live/internal/session"
	"github.com/katatrina/gundam-live/internal/util"
	"github.com/katatrina/gundam-live/internal/validator"
	"github.com/rs/zerolog/log"
)

type incrementResponse struct {
	Price             int64  `json:"price"`
	Increment         int64  `json:"increment"`
	MinNextBid        int64  `json:"min_next_bid"`
	MinNextBidDisplay string `json:"min_next_bid_display"`
}

func newIncrementResponse(price int64) incrementResponse {
	minNextBid := auction.MinNextBid(price)
	return incrementResponse{
		Price:             price,
		Increment:         auction.IncrementFor(price),
		MinNextBid:        minNextBid,
		MinNextBidDisplay: util.FormatMoney(minNextBid),
	}
}

//	@Summary		Get the bid increment table
//	@Description	Returns the increment tiers, or the increment and minimum next bid at a given price.
//	@Tags			auctions
//	@Produce		json
//	@Param			price	query		int	false	"Current price (VND)"
//	@Success		200		{object}	incrementResponse
//	@Router			/increments [get]
func (server *Server) listIncrements(c *gin.Context) {
	priceParam := c.Query("price")
	if priceParam == "" {
		c.JSON(http.StatusOK, gin.H{"tiers": auction.Tiers()})
		return
	}

	price, err := strconv.ParseInt(priceParam, 10, 64)
	if err != nil || price < 0 {
		err = fmt.Errorf("must be a non-negative integer, provided: %q", priceParam)
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("price", err)}))
		return
	}

	c.JSON(http.StatusOK, newIncrementResponse(price))
}

type auctionStatusResponse struct {
	Auction           auction.Snapshot `json:"auction"`
	Reading           auction.Reading  `json:"reading"`
	CurrentBid        int64            `json:"current_bid"`
	CurrentBidDisplay string           `json:"current_bid_display"`
	EndsAt            string           `json:"ends_at,omitempty"`
	incrementResponse
}

func newAuctionStatusResponse(snapshot auction.Snapshot, reading auction.Reading, currentBid int64) auctionStatusResponse {
	resp := auctionStatusResponse{
		Auction:           snapshot,
		Reading:           reading,
		CurrentBid:        currentBid,
		CurrentBidDisplay: util.FormatMoney(currentBid),
		incrementResponse: newIncrementResponse(currentBid),
	}
	if reading.Status == auction.StatusActive && reading.Target != nil {
		resp.EndsAt = util.FormatVietnamTime(*reading.Target)
	}
	return resp
}

//	@Summary		Get auction status
//	@Description	Retrieves the auction snapshot with its derived status, countdown and bid increment.
//	@Tags			auctions
//	@Produce		json
//	@Param			auctionID	path		string	true	"ID of the auction"
//	@Success		200			{object}	auctionStatusResponse
//	@Router			/auctions/{auctionID}/status [get]
func (server *Server) getAuctionStatus(c *gin.Context) {
	auctionID := c.Param("auctionID")
	if err := validator.ValidateUUID(auctionID); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("auctionID", err)}))
		return
	}

	snapshot, err := server.backend.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		handleError(c, err)
		return
	}

	timing, err := snapshot.Timing()
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("auction timing is malformed, treating auction as ended")
	}

	reading := auction.Describe(timing, time.Now())
	c.JSON(http.StatusOK, newAuctionStatusResponse(snapshot, reading, snapshot.CurrentBid()))
}

type auctionStreamUpdate struct {
	Bids         []auction.Bid     `json:"bids"`
	PriceHistory []live.PricePoint `json:"price_history"`
	CurrentBid   int64             `json:"current_bid"`
	incrementResponse
}

// @Summary		Stream auction updates via Server-Sent Events
// @Description	Streams the reconciled bid ticker, the price history and status readings of an auction.
// @Tags			auctions
// @Produce		text/event-stream
// @Param			auctionID	path		string	true	"Auction ID"
// @Success		200			{string}	string	"Event stream with 'snapshot', 'bids' and 'status' events"
// @Failure		400			{object}	object	"Invalid auction ID format"
// @Router			/v1/auctions/{auctionID}/stream [get]
func (server *Server) streamAuction(c *gin.Context) {
	auctionID := c.Param("auctionID")
	if err := validator.ValidateUUID(auctionID); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("auctionID", err)}))
		return
	}

	ctx := c.Request.Context()
	manager := server.newManager("auction:"+auctionID, server.config.AuctionHubURL, session.Session{})
	view, err := live.OpenAuctionView(ctx, server.backend, manager, auctionID, live.AuctionViewConfig{
		TickInterval:   server.config.StatusTickInterval,
		PollInterval:   server.config.PollInterval,
		DedupCacheSize: server.config.DedupCacheSize,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	defer view.Close()

	server.views.add(auctionID, view)
	defer server.views.remove(auctionID, view)

	bids := view.SubscribeBids()
	defer view.UnsubscribeBids(bids)
	readings := view.SubscribeStatus()
	defer view.UnsubscribeStatus(readings)

	startSSE(c)

	snapshot := view.Snapshot()
	currentBid, _ := view.CurrentBid(ctx, auctionID)
	writeSSE(c, sseEventSnapshot, gin.H{
		"status":        newAuctionStatusResponse(snapshot, view.Status(), currentBid),
		"bids":          view.Bids(),
		"price_history": view.PriceHistory(),
		"stream_state":  view.StreamState(),
	})

	for {
		select {
		case items, ok := <-bids:
			if !ok {
				return
			}
			currentBid, _ := view.CurrentBid(ctx, auctionID)
			writeSSE(c, sseEventBids, auctionStreamUpdate{
				Bids:              items,
				PriceHistory:      live.PriceHistory(items),
				CurrentBid:        currentBid,
				incrementResponse: newIncrementResponse(currentBid),
			})
		case reading, ok := <-readings:
			if !ok {
				return
			}
			writeSSE(c, sseEventStatus, reading)
		case <-ctx.Done():
			return
		}
	}
}
