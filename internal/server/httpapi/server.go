// Package httpapi exposes the public HTTP surface: the auth endpoints, the
// resource CRUD endpoints and the SSE event stream. Handlers depend on small
// service interfaces so tests can substitute them.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/config"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/services"
)

// SessionManager is the slice of the session service the HTTP layer uses.
type SessionManager interface {
	Register(ctx context.Context, username, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	LoginWithGoogle(ctx context.Context, code string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshSecret string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshSecret string) error
	LogoutEverywhere(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	VerifyAccess(token string) (string, error)
}

// OAuthRedirector builds the provider consent URL for the login redirect.
type OAuthRedirector interface {
	AuthCodeURL(state string) string
}

type TaskManager interface {
	List(ctx context.Context, userID string, filters models.TaskFilters) ([]*models.Task, int64, error)
	Get(ctx context.Context, userID, id string) (*models.Task, error)
	Create(ctx context.Context, userID string, task *models.Task) (*models.Task, error)
	Update(ctx context.Context, userID string, task *models.Task) (*models.Task, error)
	UpdateStatus(ctx context.Context, userID, id, status string) (*models.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

type NotificationManager interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
}

type MessageManager interface {
	Send(ctx context.Context, senderID, recipientID, body string) (*models.Message, error)
	Conversation(ctx context.Context, userID, peerID string, limit int) ([]*models.Message, error)
	Conversations(ctx context.Context, userID string) ([]*models.ConversationUser, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type UserManager interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, username string) (*models.User, error)
	SetNotificationEnabled(ctx context.Context, id string, enabled bool) error
	Stats(ctx context.Context, id string) (*models.UserStats, error)
}

// Services bundles everything the router needs.
type Services struct {
	Sessions      SessionManager
	OAuth         OAuthRedirector
	Tasks         TaskManager
	Notifications NotificationManager
	Messages      MessageManager
	Users         UserManager
	Bus           *events.Bus
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer builds the router and wires every handler group.
func NewServer(cfg *config.Config, svcs *Services, logger logging.Logger) *Server {
	log := logger.With("module", "httpapi")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestid.New())
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())

	registerRoutes(router, cfg, svcs, log)

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.EndpointAddrHTTP,
			Handler: router,
		},
		logger: log,
	}
}

func registerRoutes(router *gin.Engine, cfg *config.Config, svcs *Services, logger logging.Logger) {
	authH := newAuthHandler(svcs.Sessions, svcs.OAuth, logger)
	streamH := newStreamHandler(svcs.Bus, cfg.HeartbeatInterval, logger)
	taskH := newTaskHandler(svcs.Tasks)
	notifH := newNotificationHandler(svcs.Notifications)
	msgH := newMessageHandler(svcs.Messages)
	userH := newUserHandler(svcs.Users)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authH.register)
		authGroup.POST("/login", authH.login)
		authGroup.POST("/refresh", authH.refresh)
		authGroup.POST("/logout", authH.logout)
		authGroup.GET("/google", authH.googleRedirect)
		authGroup.GET("/google/callback", authH.googleCallback)
	}

	authed := api.Group("")
	authed.Use(requireAuth(svcs.Sessions))
	{
		authed.POST("/auth/logout_all", authH.logoutAll)
		authed.PUT("/auth/password", authH.changePassword)

		authed.GET("/events", streamH.stream)

		authed.GET("/tasks", taskH.list)
		authed.POST("/tasks", taskH.create)
		authed.GET("/tasks/:id", taskH.get)
		authed.PUT("/tasks/:id", taskH.update)
		authed.PATCH("/tasks/:id/status", taskH.updateStatus)
		authed.DELETE("/tasks/:id", taskH.delete)

		authed.GET("/notifications", notifH.list)
		authed.PATCH("/notifications/:id/read", notifH.markRead)
		authed.DELETE("/notifications/:id", notifH.delete)

		authed.POST("/messages", msgH.send)
		authed.GET("/messages/conversations", msgH.conversations)
		authed.GET("/messages/with/:peer_id", msgH.conversation)
		authed.PATCH("/messages/:id/read", msgH.markRead)

		authed.GET("/me", userH.me)
		authed.PUT("/me", userH.updateProfile)
		authed.PUT("/me/preferences", userH.updatePreferences)
		authed.GET("/me/stats", userH.stats)
	}
}

// Run serves until ctx is cancelled, then shuts down draining in-flight
// requests for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
