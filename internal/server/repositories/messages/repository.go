// Package messages declares the repository contract for direct messages.
package messages

import (
	"context"

	"github.com/dkurganov/taskflow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)

	// Conversation returns messages exchanged between userID and peerID,
	// newest first, limited to limit rows.
	Conversation(ctx context.Context, userID, peerID string, limit int) ([]*models.Message, error)

	// Conversations lists the user's conversation partners with the latest
	// message and unread count per partner.
	Conversations(ctx context.Context, userID string) ([]*models.ConversationUser, error)

	// MarkRead marks a message read; only the recipient may do so.
	MarkRead(ctx context.Context, recipientID, id string) error
}
