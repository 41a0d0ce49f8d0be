package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/livechat/pkg/events"
	"github.com/codeready-toolchain/livechat/pkg/models"
)

// MessageService persists chat messages and maintains the per-session
// counters.
type MessageService struct {
	db        *sql.DB
	publisher *events.EventPublisher
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *sql.DB, publisher *events.EventPublisher) *MessageService {
	return &MessageService{db: db, publisher: publisher}
}

// AddMessage appends a message to a session. The status check, insert,
// and counter update run in one transaction; the session row is locked so
// a concurrent close cannot race the write. The new_message event is
// published after commit with the caller's local_id echoed for optimistic
// reconciliation.
func (s *MessageService) AddMessage(ctx context.Context, sessionID string, sender Sender, req models.PostMessageRequest) (*models.ChatMessage, error) {
	if req.Content == "" {
		return nil, NewValidationError("content", "is required")
	}
	kind := req.ContentKind
	if kind == "" {
		kind = models.ContentText
	}
	if !kind.Valid() {
		return nil, NewValidationError("content_kind", "unknown content kind")
	}
	if !sender.Kind.Valid() {
		return nil, NewValidationError("sender_kind", "unknown sender kind")
	}

	msg := &models.ChatMessage{
		ID:          uuid.New().String(),
		LocalID:     req.LocalID,
		SessionID:   sessionID,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		SenderKind:  sender.Kind,
		Content:     req.Content,
		ContentKind: kind,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status models.SessionStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM chat_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check session status: %w", err)
	}
	if status.Terminal() {
		return nil, ErrSessionClosed
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_messages
		 (id, local_id, session_id, sender_id, sender_name, sender_kind, content, content_kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.LocalID, msg.SessionID, msg.SenderID, msg.SenderName,
		msg.SenderKind, msg.Content, msg.ContentKind, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chat_sessions
		 SET message_count = message_count + 1, last_message_at = $1
		 WHERE id = $2`,
		msg.CreatedAt, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	if err := s.publisher.PublishNewMessage(ctx, sessionID, *msg); err != nil {
		slogWarn("Failed to publish new message", sessionID, err)
	}
	return msg, nil
}

// ListMessages returns a session's full message history in creation
// order. Ties on created_at break on id so the order is stable.
func (s *MessageService) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, local_id, session_id, sender_id, sender_name, sender_kind, content, content_kind, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(
			&msg.ID, &msg.LocalID, &msg.SessionID, &msg.SenderID, &msg.SenderName,
			&msg.SenderKind, &msg.Content, &msg.ContentKind, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Sender identifies who authored a message.
type Sender struct {
	ID   string
	Name string
	Kind models.SenderKind
}
