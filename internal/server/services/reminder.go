package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
)

// ReminderWorker periodically scans for tasks whose reminder time has passed
// and turns each into a notification, exactly once per task. Users who have
// notifications disabled still get the task marked handled so the reminder
// does not fire later when they re-enable them.
type ReminderWorker struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	notifications *NotificationService
	logger        logging.Logger
	interval      time.Duration
}

func NewReminderWorker(db *sql.DB, repos repomanager.RepositoryManager,
	notifications *NotificationService, logger logging.Logger, interval time.Duration) *ReminderWorker {
	return &ReminderWorker{
		db:            db,
		repos:         repos,
		notifications: notifications,
		logger:        logger.With("module", "reminder_worker"),
		interval:      interval,
	}
}

// Run scans on the configured interval until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Scan(ctx, time.Now()); err != nil {
				w.logger.Error(ctx, "reminder scan failed", "error", err.Error())
			}
		}
	}
}

// Scan processes every task due at now. Failures on one task do not stop the
// rest of the batch.
func (w *ReminderWorker) Scan(ctx context.Context, now time.Time) error {
	due, err := w.repos.Tasks(w.db).DueForReminder(ctx, now)
	if err != nil {
		return fmt.Errorf("error listing due reminders: %w", err)
	}

	for _, task := range due {
		if err := w.remind(ctx, task); err != nil {
			w.logger.Error(ctx, "reminder failed", "task_id", task.ID, "error", err.Error())
		}
	}
	return nil
}

func (w *ReminderWorker) remind(ctx context.Context, task *models.Task) error {
	user, err := w.repos.Users(w.db).GetByID(ctx, task.UserID)
	if err != nil {
		return err
	}

	if user.NotificationEnabled {
		body := ""
		if task.DueDate != nil {
			body = "Due " + task.DueDate.Format(time.RFC1123)
		}
		_, err = w.notifications.Create(ctx, &models.Notification{
			UserID: task.UserID,
			TaskID: &task.ID,
			Title:  "Reminder: " + task.Title,
			Body:   body,
		})
		if err != nil {
			return err
		}
	}

	return w.repos.Tasks(w.db).MarkNotified(ctx, task.ID)
}
