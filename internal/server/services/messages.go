package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MessageService implements direct messages between users. A sent message is
// fanned out to the recipient's streams, and echoed to the sender's streams
// so their other devices stay in sync.
type MessageService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	bus    *events.Bus
	logger logging.Logger
}

func NewMessageService(db *sql.DB, repos repomanager.RepositoryManager, bus *events.Bus, logger logging.Logger) *MessageService {
	return &MessageService{db: db, repos: repos, bus: bus, logger: logger.With("module", "message_service")}
}

func (s *MessageService) Send(ctx context.Context, senderID, recipientID, body string) (*models.Message, error) {
	if _, err := s.repos.Users(s.db).GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	created, err := s.repos.Messages(s.db).Create(ctx, &models.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating message: %w", err)
	}

	publishChange(ctx, s.bus, s.logger, recipientID, models.ResourceMessage, models.ChangeCreated, created)
	publishChange(ctx, s.bus, s.logger, senderID, models.ResourceMessage, models.ChangeCreated, created)
	return created, nil
}

func (s *MessageService) Conversation(ctx context.Context, userID, peerID string, limit int) ([]*models.Message, error) {
	return s.repos.Messages(s.db).Conversation(ctx, userID, peerID, limit)
}

func (s *MessageService) Conversations(ctx context.Context, userID string) ([]*models.ConversationUser, error) {
	return s.repos.Messages(s.db).Conversations(ctx, userID)
}

func (s *MessageService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repos.Messages(s.db).MarkRead(ctx, userID, id); err != nil {
		return err
	}

	publishChange(ctx, s.bus, s.logger, userID, models.ResourceMessage, models.ChangeUpdated, map[string]any{"id": id, "read": true})
	return nil
}
