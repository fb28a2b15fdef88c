package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/autobid"
	"github.com/katatrina/gundam-live/internal/session"
	"github.com/katatrina/gundam-live/internal/validator"
)

type activateAutoBidRequest struct {
	MaxAmount float64 `json:"max_amount" binding:"required"`
}

type autoBidResponse struct {
	State  autobid.State   `json:"state"`
	Config *autobid.Config `json:"config"`
}

// newAutoBidController builds a controller for one request, authenticated as sess.
func (server *Server) newAutoBidController(sess session.Session) *autobid.Controller {
	return autobid.NewController(server.backend.WithSession(sess), autobid.PriceSourceFunc(server.currentBid))
}

// currentBid ưu tiên giá từ phiên đang được stream, nếu không có thì đọc snapshot từ backend.
func (server *Server) currentBid(ctx context.Context, auctionID string) (int64, error) {
	if view, ok := server.views.lookup(auctionID); ok {
		return view.CurrentBid(ctx, auctionID)
	}

	snapshot, err := server.backend.GetAuction(ctx, auctionID)
	if err != nil {
		return 0, err
	}
	return snapshot.CurrentBid(), nil
}

//	@Summary		Get auto-bid configuration
//	@Description	Retrieves the auto-bid of the authenticated user on an auction.
//	@Tags			auto-bid
//	@Produce		json
//	@Security		accessToken
//	@Param			auctionID	path		string	true	"ID of the auction"
//	@Success		200			{object}	autoBidResponse
//	@Router			/users/me/auctions/{auctionID}/auto-bid [get]
func (server *Server) getAutoBid(c *gin.Context) {
	sess := mustSession(c)
	auctionID := c.Param("auctionID")
	if err := validator.ValidateUUID(auctionID); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("auctionID", err)}))
		return
	}

	controller := server.newAutoBidController(sess)
	defer controller.Close()

	state, err := controller.Load(c.Request.Context(), auctionID, sess.UserID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, autoBidResponse{
		State:  state,
		Config: controller.Config(auctionID, sess.UserID),
	})
}

//	@Summary		Activate or update auto-bid
//	@Description	Sets the auto-bid ceiling. The ceiling must be greater than the current bid and at least the minimum next bid.
//	@Tags			auto-bid
//	@Accept			json
//	@Produce		json
//	@Security		accessToken
//	@Param			auctionID	path		string					true	"ID of the auction"
//	@Param			request		body		activateAutoBidRequest	true	"Auto-bid ceiling"
//	@Success		200			{object}	autoBidResponse
//	@Failure		400			{object}	FailedValidationResponse
//	@Router			/users/me/auctions/{auctionID}/auto-bid [put]
func (server *Server) activateAutoBid(c *gin.Context) {
	sess := mustSession(c)
	auctionID := c.Param("auctionID")
	if err := validator.ValidateUUID(auctionID); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("auctionID", err)}))
		return
	}

	var req activateAutoBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	controller := server.newAutoBidController(sess)
	defer controller.Close()

	ctx := c.Request.Context()
	// Load trước để phân biệt kích hoạt lần đầu và cập nhật
	if _, err := controller.Load(ctx, auctionID, sess.UserID); err != nil {
		handleError(c, err)
		return
	}

	config, err := controller.ActivateOrUpdate(ctx, auctionID, sess.UserID, req.MaxAmount)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, autoBidResponse{
		State:  controller.State(auctionID, sess.UserID),
		Config: &config,
	})
}

//	@Summary		Deactivate auto-bid
//	@Tags			auto-bid
//	@Produce		json
//	@Security		accessToken
//	@Param			auctionID	path		string	true	"ID of the auction"
//	@Success		200			{object}	autoBidResponse
//	@Router			/users/me/auctions/{auctionID}/auto-bid [delete]
func (server *Server) deactivateAutoBid(c *gin.Context) {
	sess := mustSession(c)
	auctionID := c.Param("auctionID")
	if err := validator.ValidateUUID(auctionID); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("auctionID", err)}))
		return
	}

	controller := server.newAutoBidController(sess)
	defer controller.Close()

	if err := controller.Deactivate(c.Request.Context(), auctionID, sess.UserID); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, autoBidResponse{
		State: controller.State(auctionID, sess.UserID),
	})
}
