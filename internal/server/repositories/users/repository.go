// Package users declares the repository contract for account storage.
package users

import (
	"context"
	"time"

	"github.com/dkurganov/taskflow/internal/server/models"
)

// Repository defines account persistence consumed by the session and profile
// services. Lookups return common.ErrorNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	UpdateProfile(ctx context.Context, id, username string) error
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	SetGoogleID(ctx context.Context, id, googleID string) error
	SetNotificationEnabled(ctx context.Context, id string, enabled bool) error

	// Failed-login accounting for the lockout policy.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	ResetFailedLogins(ctx context.Context, id string) error
	LockUntil(ctx context.Context, id string, until time.Time) error

	Stats(ctx context.Context, id string) (*models.UserStats, error)
}
