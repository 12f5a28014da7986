package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/dbx"
	"github.com/dkurganov/taskflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, email, password_hash, google_id, notification_enabled, failed_logins, locked_until, created_at, updated_at`

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var googleID sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &googleID,
		&u.NotificationEnabled, &u.FailedLogins, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.GoogleID = googleID.String
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, email, password_hash, google_id, notification_enabled)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.GoogleID, user.NotificationEnabled).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, username string) error {
	query := `UPDATE users SET username = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, username)
}

func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetGoogleID(ctx context.Context, id, googleID string) error {
	query := `UPDATE users SET google_id = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, googleID)
}

func (r *PostgresRepository) SetNotificationEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE users SET notification_enabled = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, enabled)
}

func (r *PostgresRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE users SET failed_logins = failed_logins + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_logins
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, id string) error {
	query := `UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) LockUntil(ctx context.Context, id string, until time.Time) error {
	query := `UPDATE users SET locked_until = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, until)
}

func (r *PostgresRepository) Stats(ctx context.Context, id string) (*models.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'Completed')
		FROM tasks
		WHERE user_id = $1
	`
	s := &models.UserStats{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.TotalTasks, &s.PendingTasks, &s.CompletedTasks); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
