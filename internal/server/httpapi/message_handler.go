package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/server/models"
)

type messageHandler struct {
	messages MessageManager
}

func newMessageHandler(messages MessageManager) *messageHandler {
	return &messageHandler{messages: messages}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

func (h *messageHandler) send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.GetString(ctxUserID), req.RecipientID, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *messageHandler) conversation(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	list, err := h.messages.Conversation(c.Request.Context(), c.GetString(ctxUserID), c.Param("peer_id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *messageHandler) conversations(c *gin.Context) {
	list, err := h.messages.Conversations(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*models.ConversationUser{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *messageHandler) markRead(c *gin.Context) {
	if err := h.messages.MarkRead(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
