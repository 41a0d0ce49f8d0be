package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// EventPublisher publishes events for WebSocket delivery.
// Persistent events are stored in the events table then broadcast via
// NOTIFY. Transient notification-stream copies are broadcast via NOTIFY
// only.
//
// Each public method accepts the domain values, builds the typed payload
// from payloads.go, and routes the marshaled JSON to the appropriate
// channel via persistAndNotify or notifyOnly.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB from database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// PublishNewMessage persists and broadcasts a new_message event on the
// session channel, then broadcasts a transient preview copy on the
// notifications channel. The session publish is authoritative; a failed
// notification copy is logged but does not fail the call.
func (p *EventPublisher) PublishNewMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	payload := NewMessagePayload{
		Type:      EventTypeNewMessage,
		SessionID: sessionID,
		Message:   msg,
		Timestamp: now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal NewMessagePayload: %w", err)
	}

	if err := p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), payloadJSON); err != nil {
		return err
	}

	if err := p.notifyOnly(ctx, NotificationsChannel, payloadJSON); err != nil {
		slog.Warn("Failed to publish message preview to notifications channel",
			"session_id", sessionID, "message_id", msg.ID, "error", err)
	}
	return nil
}

// PublishStatusUpdate persists a status_update event on the session
// channel and broadcasts a transient session_status_change copy on the
// notifications channel. Both publishes are attempted; the first error
// encountered is returned.
func (p *EventPublisher) PublishStatusUpdate(ctx context.Context, sessionID string, status models.SessionStatus) error {
	payload := StatusUpdatePayload{
		Type:      EventTypeStatusUpdate,
		SessionID: sessionID,
		Status:    status,
		Timestamp: now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal StatusUpdatePayload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), payloadJSON); err != nil {
		slog.Warn("Failed to publish status update to session channel",
			"session_id", sessionID, "status", status, "error", err)
		firstErr = err
	}

	payload.Type = EventTypeSessionStatusChange
	globalJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal session_status_change payload: %w", err)
	}
	if err := p.notifyOnly(ctx, NotificationsChannel, globalJSON); err != nil {
		slog.Warn("Failed to publish status change to notifications channel",
			"session_id", sessionID, "status", status, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// PublishAdminJoined persists an admin_joined event on the session
// channel and broadcasts a transient session_assigned copy on the
// notifications channel.
func (p *EventPublisher) PublishAdminJoined(ctx context.Context, sessionID, adminID, adminName string) error {
	payload := AdminJoinedPayload{
		Type:      EventTypeAdminJoined,
		SessionID: sessionID,
		AdminID:   adminID,
		AdminName: adminName,
		Timestamp: now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal AdminJoinedPayload: %w", err)
	}

	if err := p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), payloadJSON); err != nil {
		return err
	}

	payload.Type = EventTypeSessionAssigned
	globalJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal session_assigned payload: %w", err)
	}
	if err := p.notifyOnly(ctx, NotificationsChannel, globalJSON); err != nil {
		slog.Warn("Failed to publish assignment to notifications channel",
			"session_id", sessionID, "admin_id", adminID, "error", err)
	}
	return nil
}

// PublishAdminLeft persists an admin_left event on the session channel.
func (p *EventPublisher) PublishAdminLeft(ctx context.Context, sessionID, adminID string) error {
	payload := AdminLeftPayload{
		Type:      EventTypeAdminLeft,
		SessionID: sessionID,
		AdminID:   adminID,
		Timestamp: now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal AdminLeftPayload: %w", err)
	}
	return p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), payloadJSON)
}

// PublishNewSession broadcasts a new_session transient event on the
// notifications channel. No DB persistence: the session row itself is
// the durable record, and newly connected operators list sessions via
// REST.
func (p *EventPublisher) PublishNewSession(ctx context.Context, session models.ChatSession) error {
	payload := NewSessionPayload{
		Type:      EventTypeNewSession,
		SessionID: session.ID,
		Session:   session,
		Timestamp: now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal NewSessionPayload: %w", err)
	}
	return p.notifyOnly(ctx, NotificationsChannel, payloadJSON)
}

// persistAndNotify persists a pre-marshaled event to the database and
// broadcasts via NOTIFY in a single transaction (pg_notify is
// transactional, held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, sessionID, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (session_id, channel, payload, created_at) VALUES ($1, $2, $3, $4)`,
		sessionID, channel, payloadJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}

	// pg_notify within the same transaction, held until COMMIT.
	_, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without
// persisting to DB.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields. Clients receiving a
// truncated frame reconnect the stream; the initial snapshot carries the
// full content.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the
// full JSON payload bytes, keeping only the routing fields.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncBytes, err := json.Marshal(map[string]any{
		"type":       routing.Type,
		"session_id": routing.SessionID,
		"truncated":  true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
