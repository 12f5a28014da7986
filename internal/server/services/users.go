package services

import (
	"context"
	"database/sql"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
)

// UserService exposes profile reads and updates.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{db: db, repos: repos, logger: logger.With("module", "user_service")}
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id, username string) (*models.User, error) {
	repo := s.repos.Users(s.db)
	if err := repo.UpdateProfile(ctx, id, username); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, id)
}

func (s *UserService) SetNotificationEnabled(ctx context.Context, id string, enabled bool) error {
	return s.repos.Users(s.db).SetNotificationEnabled(ctx, id, enabled)
}

func (s *UserService) Stats(ctx context.Context, id string) (*models.UserStats, error) {
	return s.repos.Users(s.db).Stats(ctx, id)
}
