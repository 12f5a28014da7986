package messages

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, m.ID, m.SenderID, m.RecipientID, m.Body).
		Scan(&m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Conversation(ctx context.Context, userID, peerID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, sender_id, recipient_id, body, read, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Conversations(ctx context.Context, userID string) ([]*models.ConversationUser, error) {
	query := `
		SELECT DISTINCT ON (peer.id)
			peer.id,
			peer.username,
			m.body,
			m.created_at,
			(SELECT COUNT(*) FROM messages
			 WHERE recipient_id = $1 AND sender_id = peer.id AND read = FALSE)
		FROM messages m
		JOIN users peer
		  ON peer.id = CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY peer.id, m.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.ConversationUser
	for rows.Next() {
		c := &models.ConversationUser{}
		if err := rows.Scan(&c.UserID, &c.Username, &c.LastMessage, &c.LastAt, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, recipientID, id string) error {
	query := `UPDATE messages SET read = TRUE WHERE id = $1 AND recipient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
