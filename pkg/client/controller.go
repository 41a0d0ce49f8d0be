package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// State is the session lifecycle state owned by the controller.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateWaiting  State = "waiting"
	StateActive   State = "active"
	StateResolved State = "resolved"
	StateClosed   State = "closed"
)

// SessionController owns the session state machine and coordinates the
// transport, message store, and optimistic tracker. All collaborators,
// credentials included, are injected at construction.
type SessionController struct {
	backend   Backend
	transport Transport
	creds     Credentials

	store   *MessageStore
	tracker *OptimisticTracker

	mu      sync.Mutex
	state   State
	session *models.ChatSession

	// onChange, if set, fires after every externally visible mutation.
	onChange func()
}

// NewSessionController wires a controller to its collaborators and
// installs itself as the transport's event handler.
func NewSessionController(creds Credentials, backend Backend, transport Transport) *SessionController {
	c := &SessionController{
		backend:   backend,
		transport: transport,
		creds:     creds,
		store:     NewMessageStore(),
		tracker:   NewOptimisticTracker(),
		state:     StateIdle,
	}
	transport.SetHandler(c)
	return c
}

// OnChange registers a callback fired after every state, session, or
// store mutation. Must be set before the controller is used.
func (c *SessionController) OnChange(fn func()) { c.onChange = fn }

// State returns the current lifecycle state.
func (c *SessionController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session, or nil when idle.
func (c *SessionController) Session() *models.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	copied := *c.session
	return &copied
}

// Messages returns the current display set.
func (c *SessionController) Messages() []models.ChatMessage {
	return c.store.Messages()
}

// PendingSends returns the number of unconfirmed optimistic messages.
func (c *SessionController) PendingSends() int {
	return c.tracker.Len()
}

// Start creates a session for the given subject and opens its stream.
// Fails with ErrAuthenticationRequired when no valid credential is
// present, and with ErrSessionInProgress when a session already exists.
func (c *SessionController) Start(ctx context.Context, subject string) error {
	if !c.creds.Valid() {
		return ErrAuthenticationRequired
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.state = StateStarting
	c.mu.Unlock()
	c.changed()

	session, err := c.backend.StartSession(ctx, subject)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		c.changed()
		return fmt.Errorf("start session: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.state = statusToState(session.Status)
	c.mu.Unlock()
	c.changed()

	if err := c.transport.Connect(ctx, session.ID); err != nil {
		// The transport keeps retrying on its own; the session is usable.
		slog.Warn("Initial stream connect failed, transport will retry",
			"session_id", session.ID, "error", err)
	}
	return nil
}

// Send inserts an optimistic message immediately, then posts it. On
// failure the optimistic entry is rolled back and a *SendError carrying
// the original content is returned so the caller can restore the input.
//
// A send that appears failed may still have landed server-side; in that
// case the confirmed message arrives via the stream as a normal insert.
// Removal therefore does not mean "never happened".
func (c *SessionController) Send(ctx context.Context, content string, kind models.ContentKind) error {
	if !c.creds.Valid() {
		return ErrAuthenticationRequired
	}
	if kind == "" {
		kind = models.ContentText
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.session.Status.Terminal() {
		c.mu.Unlock()
		return ErrSessionTerminal
	}
	sessionID := c.session.ID
	c.mu.Unlock()

	localID := NewLocalID()
	optimistic := models.ChatMessage{
		ID:          localID,
		SessionID:   sessionID,
		SenderID:    c.creds.UserID,
		SenderName:  c.creds.UserName,
		SenderKind:  models.SenderUser,
		Content:     content,
		ContentKind: kind,
		CreatedAt:   time.Now(),
	}
	c.store.Insert(optimistic)
	c.tracker.Track(localID)
	c.changed()

	err := c.backend.PostMessage(ctx, sessionID, models.PostMessageRequest{
		Content:     content,
		ContentKind: kind,
		LocalID:     localID,
	})
	if err != nil {
		c.store.Remove(localID)
		c.tracker.Drop(localID)
		c.changed()
		return &SendError{Content: content, Err: err}
	}
	return nil
}

// Rate records a rating for the current session. A UX gate offers this
// before close; it is not a state transition.
func (c *SessionController) Rate(ctx context.Context, rating int, feedback string) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	sessionID := c.session.ID
	c.mu.Unlock()
	return c.backend.RateSession(ctx, sessionID, rating, feedback)
}

// Leave tears down the transport, discards all session state, and
// returns to idle. The backend leave call is best-effort: local teardown
// happens regardless.
func (c *SessionController) Leave(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.transport.Disconnect()
	c.store.Clear()
	c.tracker.Clear()
	c.changed()

	if session == nil {
		return nil
	}
	if err := c.backend.LeaveSession(ctx, session.ID); err != nil {
		slog.Warn("Leave session call failed",
			"session_id", session.ID, "error", err)
		return err
	}
	return nil
}

// Close is the explicit close action; protocol-wise identical to Leave.
func (c *SessionController) Close(ctx context.Context) error {
	return c.Leave(ctx)
}

// HandleStreamEvent implements EventHandler. Called from the transport's
// read loop; must not block.
func (c *SessionController) HandleStreamEvent(evt StreamEvent) {
	switch ev := evt.(type) {
	case InitialEvent:
		c.handleInitial(ev)
	case NewMessageEvent:
		c.handleNewMessage(ev.Message)
	case StatusUpdateEvent:
		c.applyStatus(ev.Status)
	case AdminJoinedEvent:
		c.mu.Lock()
		if c.session != nil {
			c.session.AssignedAdmin = ev.AdminID
			c.session.AssignedAdminName = ev.AdminName
			c.session.Status = models.StatusActive
			c.state = StateActive
		}
		c.mu.Unlock()
		c.changed()
	case AdminLeftEvent:
		c.mu.Lock()
		if c.session != nil && !c.session.Status.Terminal() {
			c.session.AssignedAdmin = ""
			c.session.AssignedAdminName = ""
			c.session.Status = models.StatusWaiting
			c.state = StateWaiting
		}
		c.mu.Unlock()
		c.changed()
	}
}

// handleInitial merges a snapshot into the store: confirmed messages are
// authoritative, locally pending optimistic messages not yet in the
// snapshot are preserved.
func (c *SessionController) handleInitial(ev InitialEvent) {
	// Snapshot messages that confirm a tracked send supersede their
	// optimistic entries.
	for _, m := range ev.Messages {
		if c.tracker.Confirm(m.LocalID) {
			c.store.Remove(m.LocalID)
		}
	}

	pending := c.pendingMessages()
	c.store.SetMerged(ev.Messages, pending)

	if ev.Session != nil {
		c.mu.Lock()
		c.session = ev.Session
		c.state = statusToState(ev.Session.Status)
		c.mu.Unlock()
	}
	c.changed()
}

// handleNewMessage inserts one authoritative message, superseding its
// optimistic counterpart when the local id is tracked.
func (c *SessionController) handleNewMessage(msg models.ChatMessage) {
	if c.tracker.Confirm(msg.LocalID) {
		c.store.Remove(msg.LocalID)
	}
	c.store.Insert(msg)

	c.mu.Lock()
	if c.session != nil {
		c.session.MessageCount = c.store.Len()
		created := msg.CreatedAt
		c.session.LastMessageAt = &created
	}
	c.mu.Unlock()
	c.changed()
}

func (c *SessionController) applyStatus(status models.SessionStatus) {
	c.mu.Lock()
	if c.session != nil {
		c.session.Status = status
		c.state = statusToState(status)
	}
	c.mu.Unlock()
	c.changed()
}

// pendingMessages returns the optimistic store entries still awaiting
// confirmation.
func (c *SessionController) pendingMessages() []models.ChatMessage {
	var pending []models.ChatMessage
	for _, m := range c.store.Messages() {
		if c.tracker.IsPending(m.ID) {
			pending = append(pending, m)
		}
	}
	return pending
}

func (c *SessionController) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func statusToState(status models.SessionStatus) State {
	switch status {
	case models.StatusActive:
		return StateActive
	case models.StatusResolved:
		return StateResolved
	case models.StatusClosed:
		return StateClosed
	default:
		return StateWaiting
	}
}
