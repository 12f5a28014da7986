package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/logging"
)

// ctxUserID is the gin context key the auth middleware stores the verified
// user id under.
const ctxUserID = "user_id"

// requestLogger logs one line per request with latency and status.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "request",
			"request_id", requestid.Get(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// requireAuth verifies the bearer access token and stores the user id in the
// context. The token comes from the Authorization header, or from the
// access_token query parameter for clients that cannot set headers on
// streaming requests (EventSource).
func requireAuth(sessions SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}

		userID, err := sessions.VerifyAccess(token)
		if err != nil {
			msg := "invalid access token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "access token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	return c.Query("access_token")
}

// httpStatus maps service errors to response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrSessionRevoked),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInvalidProvider):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrProviderUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error as a JSON body with the mapped status. Internal
// errors are masked.
func fail(c *gin.Context, err error) {
	status := httpStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
