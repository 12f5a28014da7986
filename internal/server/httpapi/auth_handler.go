package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/services"
)

const oauthStateCookie = "oauth_state"

type authHandler struct {
	sessions SessionManager
	oauth    OAuthRedirector
	logger   logging.Logger
}

func newAuthHandler(sessions SessionManager, oauth OAuthRedirector, logger logging.Logger) *authHandler {
	return &authHandler{sessions: sessions, oauth: oauth, logger: logger}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type authResponse struct {
	AccessToken     string       `json:"access_token"`
	AccessExpiresAt time.Time    `json:"access_expires_at"`
	RefreshToken    string       `json:"refresh_token"`
	User            *models.User `json:"user,omitempty"`
}

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
		RefreshToken:    res.RefreshToken,
		User:            res.User,
	}
}

func (h *authHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.sessions.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *authHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *authHandler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *authHandler) logoutAll(c *gin.Context) {
	if err := h.sessions.LogoutEverywhere(c.Request.Context(), c.GetString(ctxUserID)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *authHandler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sessions.ChangePassword(c.Request.Context(), c.GetString(ctxUserID), req.OldPassword, req.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// googleRedirect starts the OAuth flow: a random state value goes into a
// short-lived cookie and into the consent URL.
func (h *authHandler) googleRedirect(c *gin.Context) {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		fail(c, common.ErrorInternal)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 300, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// googleCallback finishes the OAuth flow: the state must match the cookie,
// then the authorization code is exchanged for a session.
func (h *authHandler) googleCallback(c *gin.Context) {
	state := c.Query("state")
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != cookie {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	res, err := h.sessions.LoginWithGoogle(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}
