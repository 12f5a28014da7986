package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TaskService implements task CRUD scoped to the owning user and publishes a
// change event after every successful mutation.
type TaskService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	bus    *events.Bus
	logger logging.Logger
}

func NewTaskService(db *sql.DB, repos repomanager.RepositoryManager, bus *events.Bus, logger logging.Logger) *TaskService {
	return &TaskService{db: db, repos: repos, bus: bus, logger: logger.With("module", "task_service")}
}

func (s *TaskService) List(ctx context.Context, userID string, filters models.TaskFilters) ([]*models.Task, int64, error) {
	return s.repos.Tasks(s.db).List(ctx, userID, filters)
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.repos.Tasks(s.db).GetByID(ctx, userID, id)
}

func (s *TaskService) Create(ctx context.Context, userID string, task *models.Task) (*models.Task, error) {
	task.ID = uuid.New().String()
	task.UserID = userID
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	created, err := s.repos.Tasks(s.db).Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceTask, models.ChangeCreated, created)
	return created, nil
}

// Update replaces the mutable fields of the task. Changing the reminder time
// re-arms the reminder so it fires again.
func (s *TaskService) Update(ctx context.Context, userID string, task *models.Task) (*models.Task, error) {
	repo := s.repos.Tasks(s.db)

	current, err := repo.GetByID(ctx, userID, task.ID)
	if err != nil {
		return nil, err
	}

	task.UserID = userID
	if task.Status == "" {
		task.Status = current.Status
	}
	if task.Priority == "" {
		task.Priority = current.Priority
	}
	task.Notified = current.Notified
	if reminderChanged(current.ReminderTime, task.ReminderTime) {
		task.Notified = false
	}

	if err := repo.Update(ctx, task); err != nil {
		return nil, err
	}

	updated, err := repo.GetByID(ctx, userID, task.ID)
	if err != nil {
		return nil, err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceTask, models.ChangeUpdated, updated)
	return updated, nil
}

func (s *TaskService) UpdateStatus(ctx context.Context, userID, id, status string) (*models.Task, error) {
	repo := s.repos.Tasks(s.db)

	if err := repo.UpdateStatus(ctx, userID, id, status); err != nil {
		return nil, err
	}

	updated, err := repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceTask, models.ChangeUpdated, updated)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repos.Tasks(s.db).Delete(ctx, userID, id); err != nil {
		return err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceTask, models.ChangeDeleted, map[string]string{"id": id})
	return nil
}

func reminderChanged(old, new *time.Time) bool {
	switch {
	case old == nil && new == nil:
		return false
	case old == nil || new == nil:
		return true
	default:
		return !old.Equal(*new)
	}
}
