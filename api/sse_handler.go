package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Tên sự kiện SSE gửi tới client
const (
	sseEventSnapshot      = "snapshot"
	sseEventBids          = "bids"
	sseEventStatus        = "status"
	sseEventThread        = "thread"
	sseEventMessages      = "messages"
	sseEventNotifications = "notifications"
	sseEventUnread        = "unread"
)

// startSSE thiết lập header SSE
func startSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

// writeSSE gửi một sự kiện tới client.
func writeSSE(c *gin.Context, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to encode SSE event")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventType, payload)
	c.Writer.Flush()
}
