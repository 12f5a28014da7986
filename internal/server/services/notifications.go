package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// NotificationService manages per-user notifications. Creation is internal
// (the reminder worker and other services call it); listing and read state
// are user-facing.
type NotificationService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	bus    *events.Bus
	logger logging.Logger
}

func NewNotificationService(db *sql.DB, repos repomanager.RepositoryManager, bus *events.Bus, logger logging.Logger) *NotificationService {
	return &NotificationService{db: db, repos: repos, bus: bus, logger: logger.With("module", "notification_service")}
}

func (s *NotificationService) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	n.ID = uuid.New().String()

	created, err := s.repos.Notifications(s.db).Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}

	publishChange(ctx, s.bus, s.logger, created.UserID, models.ResourceNotification, models.ChangeCreated, created)
	return created, nil
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	return s.repos.Notifications(s.db).ListByUser(ctx, userID, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repos.Notifications(s.db).MarkRead(ctx, userID, id); err != nil {
		return err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceNotification, models.ChangeUpdated, map[string]any{"id": id, "read": true})
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repos.Notifications(s.db).Delete(ctx, userID, id); err != nil {
		return err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceNotification, models.ChangeDeleted, map[string]string{"id": id})
	return nil
}
