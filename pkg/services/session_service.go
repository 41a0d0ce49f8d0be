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

// sessionColumns is the SELECT list shared by all session queries;
// scanSession must match it.
const sessionColumns = `id, user_id, user_name, subject, status, message_count,
	last_message_at, created_at, assigned_admin, assigned_admin_name, rating, feedback`

// SessionService manages chat session lifecycle. State changes publish
// their events through the EventPublisher after the write commits.
type SessionService struct {
	db        *sql.DB
	publisher *events.EventPublisher
}

// NewSessionService creates a new SessionService.
func NewSessionService(db *sql.DB, publisher *events.EventPublisher) *SessionService {
	return &SessionService{db: db, publisher: publisher}
}

// Create creates a new waiting session and announces it on the
// notifications channel.
func (s *SessionService) Create(ctx context.Context, userID, userName, subject string) (*models.ChatSession, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "is required")
	}

	session := &models.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		UserName:  userName,
		Subject:   subject,
		Status:    models.StatusWaiting,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, user_name, subject, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.UserName, session.Subject, session.Status, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.publisher.PublishNewSession(ctx, *session); err != nil {
		slogWarn("Failed to announce new session", session.ID, err)
	}
	return session, nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// List returns sessions, newest first, optionally filtered by status.
func (s *SessionService) List(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions`
	args := []any{}
	if status != "" {
		if !status.Valid() {
			return nil, NewValidationError("status", "unknown status")
		}
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateStatus transitions a session and publishes the status event.
// Transitions out of a terminal status are rejected.
func (s *SessionService) UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	if !status.Valid() {
		return NewValidationError("status", "unknown status")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET status = $1
		 WHERE id = $2 AND status NOT IN ('resolved', 'closed')`,
		status, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if err := s.requireRow(ctx, res, sessionID); err != nil {
		return err
	}

	if err := s.publisher.PublishStatusUpdate(ctx, sessionID, status); err != nil {
		slogWarn("Failed to publish status update", sessionID, err)
	}
	return nil
}

// AssignAdmin assigns an operator and activates the session. Publishes
// admin_joined, which carries the activation for stream clients.
func (s *SessionService) AssignAdmin(ctx context.Context, sessionID, adminID, adminName string) error {
	if adminID == "" {
		return NewValidationError("admin_id", "is required")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions
		 SET assigned_admin = $1, assigned_admin_name = $2, status = 'active'
		 WHERE id = $3 AND status NOT IN ('resolved', 'closed')`,
		adminID, adminName, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign admin: %w", err)
	}
	if err := s.requireRow(ctx, res, sessionID); err != nil {
		return err
	}

	if err := s.publisher.PublishAdminJoined(ctx, sessionID, adminID, adminName); err != nil {
		slogWarn("Failed to publish admin joined", sessionID, err)
	}
	return nil
}

// UnassignAdmin removes the assigned operator and returns the session to
// waiting. Publishes admin_left.
func (s *SessionService) UnassignAdmin(ctx context.Context, sessionID, adminID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions
		 SET assigned_admin = '', assigned_admin_name = '', status = 'waiting'
		 WHERE id = $1 AND assigned_admin = $2 AND status NOT IN ('resolved', 'closed')`,
		sessionID, adminID,
	)
	if err != nil {
		return fmt.Errorf("failed to unassign admin: %w", err)
	}
	if err := s.requireRow(ctx, res, sessionID); err != nil {
		return err
	}

	if err := s.publisher.PublishAdminLeft(ctx, sessionID, adminID); err != nil {
		slogWarn("Failed to publish admin left", sessionID, err)
	}
	return nil
}

// Rate records a rating and optional feedback for a session. Ratings are
// accepted in any state so a user can rate right after resolution.
func (s *SessionService) Rate(ctx context.Context, sessionID string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return NewValidationError("rating", "must be between 1 and 5")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET rating = $1, feedback = $2 WHERE id = $3`,
		rating, feedback, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to rate session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rating update: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Close marks the session closed. Closing an already-terminal session is
// a no-op rather than an error, so leave is idempotent.
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	err := s.UpdateStatus(ctx, sessionID, models.StatusClosed)
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// requireRow distinguishes "no such session" from "session is terminal"
// after an UPDATE guarded by the terminal-status predicate.
func (s *SessionService) requireRow(ctx context.Context, res sql.Result, sessionID string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status models.SessionStatus
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM chat_sessions WHERE id = $1`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session status: %w", err)
	}
	if status.Terminal() {
		return ErrSessionClosed
	}
	return ErrNotFound
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var (
		session       models.ChatSession
		lastMessageAt sql.NullTime
		rating        sql.NullInt64
	)
	err := row.Scan(
		&session.ID, &session.UserID, &session.UserName, &session.Subject,
		&session.Status, &session.MessageCount, &lastMessageAt, &session.CreatedAt,
		&session.AssignedAdmin, &session.AssignedAdminName, &rating, &session.Feedback,
	)
	if err != nil {
		return nil, err
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		session.LastMessageAt = &t
	}
	if rating.Valid {
		session.Rating = int(rating.Int64)
	}
	return &session, nil
}
