// Package tasks declares the repository contract for task storage.
package tasks

import (
	"context"
	"time"

	"github.com/dkurganov/taskflow/internal/server/models"
)

// Repository defines task persistence. All operations are scoped to the
// owning user; lookups return common.ErrorNotFound for rows that do not
// exist or belong to someone else.
type Repository interface {
	List(ctx context.Context, userID string, filters models.TaskFilters) ([]*models.Task, int64, error)
	GetByID(ctx context.Context, userID, id string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, userID, id, status string) error
	Delete(ctx context.Context, userID, id string) error

	// DueForReminder returns tasks whose reminder time has passed and that
	// have not been notified yet. MarkNotified flags a task as handled so a
	// reminder fires once.
	DueForReminder(ctx context.Context, now time.Time) ([]*models.Task, error)
	MarkNotified(ctx context.Context, id string) error
}
