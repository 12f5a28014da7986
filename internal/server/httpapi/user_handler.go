package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type userHandler struct {
	users UserManager
}

func newUserHandler(users UserManager) *userHandler {
	return &userHandler{users: users}
}

func (h *userHandler) me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *userHandler) updateProfile(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString(ctxUserID), req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *userHandler) updatePreferences(c *gin.Context) {
	var req struct {
		NotificationEnabled *bool `json:"notification_enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.SetNotificationEnabled(c.Request.Context(), c.GetString(ctxUserID), *req.NotificationEnabled); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *userHandler) stats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
