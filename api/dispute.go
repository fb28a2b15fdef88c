package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/dispute"
	"github.com/katatrina/gundam-live/internal/reconcile"
	"github.com/katatrina/gundam-live/internal/session"
	"github.com/katatrina/gundam-live/internal/validator"
	"github.com/rs/zerolog/log"
)

const maxDisputeIDLength = 64

// assembleDispute builds the thread and checks that the session user may read it.
func (server *Server) assembleDispute(ctx context.Context, disputeID string) (dispute.Thread, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return dispute.Thread{}, err
	}

	assembler := dispute.NewAssembler(server.backend.WithSession(sess), server.config.DefaultAdminID,
		dispute.WithGraceWindow(server.config.DisputeGraceWindow))

	thread, err := assembler.Assemble(ctx, disputeID)
	if err != nil {
		return dispute.Thread{}, err
	}

	if !sess.IsAdmin() && !slices.Contains(thread.Participants, sess.UserID) {
		return dispute.Thread{}, ErrNotDisputeParticipant
	}
	return thread, nil
}

//	@Summary		Get dispute conversation
//	@Description	Retrieves every message exchanged among the buyer, the seller and the admin of a dispute since it was opened.
//	@Tags			disputes
//	@Produce		json
//	@Security		accessToken
//	@Param			disputeID	path		string	true	"ID of the dispute"
//	@Success		200			{object}	dispute.Thread
//	@Failure		403			{object}	map[string]string
//	@Router			/disputes/{disputeID}/messages [get]
func (server *Server) getDisputeMessages(c *gin.Context) {
	disputeID := c.Param("disputeID")
	if err := validator.ValidateIdentifier(disputeID, maxDisputeIDLength); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("disputeID", err)}))
		return
	}

	thread, err := server.assembleDispute(c.Request.Context(), disputeID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

// @Summary		Stream dispute conversation via Server-Sent Events
// @Description	Sends the assembled thread, then the message list every time a relevant live message arrives.
// @Tags			disputes
// @Produce		text/event-stream
// @Security		accessToken
// @Param			disputeID	path		string	true	"ID of the dispute"
// @Success		200			{string}	string	"Event stream with 'thread' and 'messages' events"
// @Router			/v1/disputes/{disputeID}/stream [get]
func (server *Server) streamDispute(c *gin.Context) {
	sess := mustSession(c)
	disputeID := c.Param("disputeID")
	if err := validator.ValidateIdentifier(disputeID, maxDisputeIDLength); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("disputeID", err)}))
		return
	}

	ctx := c.Request.Context()
	thread, err := server.assembleDispute(ctx, disputeID)
	if err != nil {
		handleError(c, err)
		return
	}

	liveThread := dispute.NewLiveThread(thread, reconcile.WithSeenCacheSize(server.config.DedupCacheSize))
	defer liveThread.Close()

	manager := server.newManager("chat:"+sess.UserID, server.config.ChatHubURL, sess)
	defer manager.Stop()

	// Tin nhắn được gửi tới group mang ID của người dùng
	if err = liveThread.Attach(ctx, manager, sess.UserID); err != nil {
		log.Warn().Err(err).Str("dispute_id", disputeID).Msg("failed to attach dispute thread")
	}
	if err = manager.Start(ctx); err != nil {
		log.Warn().Err(err).Str("dispute_id", disputeID).Msg("chat stream unavailable, sending the assembled thread only")
	}

	messages := liveThread.Subscribe()
	defer liveThread.Unsubscribe(messages)

	startSSE(c)
	writeSSE(c, sseEventThread, liveThread.Thread())

	for {
		select {
		case items, ok := <-messages:
			if !ok {
				return
			}
			writeSSE(c, sseEventMessages, items)
		case <-ctx.Done():
			return
		}
	}
}
