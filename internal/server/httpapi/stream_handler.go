package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/events"
)

// streamHandler serves the SSE endpoint. Each connection gets its own bus
// subscription; the connection ends when the client goes away or when the
// subscription is force-closed by a logout or a revocation.
type streamHandler struct {
	bus       *events.Bus
	heartbeat time.Duration
	logger    logging.Logger
}

func newStreamHandler(bus *events.Bus, heartbeat time.Duration, logger logging.Logger) *streamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &streamHandler{bus: bus, heartbeat: heartbeat, logger: logger}
}

func (h *streamHandler) stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	userID := c.GetString(ctxUserID)
	sub := h.bus.Subscribe(userID)
	defer h.bus.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info(c.Request.Context(), "stream opened", "user_id", userID)
	defer h.logger.Info(c.Request.Context(), "stream closed", "user_id", userID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				// forced disconnect: session revoked or logged out
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Name(), ev.Payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
