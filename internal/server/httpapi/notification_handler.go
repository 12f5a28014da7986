package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/server/models"
)

type notificationHandler struct {
	notifications NotificationManager
}

func newNotificationHandler(notifications NotificationManager) *notificationHandler {
	return &notificationHandler{notifications: notifications}
}

func (h *notificationHandler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	list, err := h.notifications.List(c.Request.Context(), c.GetString(ctxUserID), unreadOnly)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *notificationHandler) markRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *notificationHandler) delete(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
