package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/notification"
	"github.com/katatrina/gundam-live/internal/validator"
	"github.com/rs/zerolog/log"
)

const maxNotificationIDLength = 64

var ErrNoNotificationStream = errors.New("no notification stream is open for this user")

type markNotificationReadResponse struct {
	Marked      bool `json:"marked"`
	UnreadCount int  `json:"unread_count"`
}

// @Summary		Stream notifications via Server-Sent Events
// @Description	Sends the inbox and the unread count, then every change pushed by the notification hub.
// @Tags			notifications
// @Produce		text/event-stream
// @Security		accessToken
// @Success		200	{string}	string	"Event stream with 'notifications' and 'unread' events"
// @Router			/v1/users/me/notifications/stream [get]
func (server *Server) streamNotifications(c *gin.Context) {
	sess := mustSession(c)
	ctx := c.Request.Context()

	center := notification.NewCenter(sess.UserID, server.config.DedupCacheSize)
	defer center.Close()

	if err := center.Load(ctx, server.backend.WithSession(sess)); err != nil {
		handleError(c, err)
		return
	}

	server.centers.add(sess.UserID, center)
	defer server.centers.remove(sess.UserID, center)

	manager := server.newManager("notification:"+sess.UserID, server.config.NotificationHubURL, sess)
	defer manager.Stop()

	if err := center.Attach(ctx, manager); err != nil {
		log.Warn().Err(err).Str("user_id", sess.UserID).Msg("failed to attach notification center")
	}
	if err := manager.Start(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", sess.UserID).Msg("notification stream unavailable")
	}

	inbox := center.Subscribe()
	defer center.Unsubscribe(inbox)
	unread := center.SubscribeUnread()
	defer center.UnsubscribeUnread(unread)

	startSSE(c)
	writeSSE(c, sseEventNotifications, center.Notifications())
	writeSSE(c, sseEventUnread, gin.H{"unread_count": center.Unread()})

	for {
		select {
		case items, ok := <-inbox:
			if !ok {
				return
			}
			writeSSE(c, sseEventNotifications, items)
		case count, ok := <-unread:
			if !ok {
				return
			}
			writeSSE(c, sseEventUnread, gin.H{"unread_count": count})
		case <-ctx.Done():
			return
		}
	}
}

//	@Summary		Mark a notification as read
//	@Description	Marks the notification read in every open notification stream of the user and updates their unread count.
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			notificationID	path		string	true	"ID of the notification"
//	@Success		200				{object}	markNotificationReadResponse
//	@Failure		404				"No notification stream is open"
//	@Router			/v1/users/me/notifications/{notificationID}/read [post]
func (server *Server) markNotificationRead(c *gin.Context) {
	sess := mustSession(c)
	notificationID := c.Param("notificationID")
	if err := validator.ValidateIdentifier(notificationID, maxNotificationIDLength); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{fieldViolation("notificationID", err)}))
		return
	}

	centers := server.centers.all(sess.UserID)
	if len(centers) == 0 {
		c.JSON(http.StatusNotFound, errorResponse(ErrNoNotificationStream))
		return
	}

	var resp markNotificationReadResponse
	for _, center := range centers {
		if center.MarkRead(notificationID) {
			resp.Marked = true
		}
		resp.UnreadCount = center.Unread()
	}

	c.JSON(http.StatusOK, resp)
}
