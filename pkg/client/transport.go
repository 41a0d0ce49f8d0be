package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ConnState is the observable transport condition surfaced to the UI.
type ConnState string

const (
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
	ConnDisconnected ConnState = "disconnected"
)

// DefaultReconnectDelay is the fixed delay between reconnection attempts
// for per-session streams.
const DefaultReconnectDelay = 2 * time.Second

// dialTimeout bounds a single WebSocket dial during automatic reconnection.
const dialTimeout = 10 * time.Second

// EventHandler receives parsed stream events. Implemented by
// SessionController; handlers must return promptly.
type EventHandler interface {
	HandleStreamEvent(evt StreamEvent)
}

// Transport is the session-scoped streaming connection consumed by the
// SessionController. Satisfied by StreamTransport; tests substitute fakes.
type Transport interface {
	SetHandler(h EventHandler)
	Connect(ctx context.Context, sessionID string) error
	Disconnect()
}

// TransportConfig configures a StreamTransport.
type TransportConfig struct {
	// BaseURL is the ws:// or wss:// origin of the backend.
	BaseURL string
	// Credentials identify the connecting user; sent as dial headers.
	Credentials Credentials
	// ReconnectDelay overrides the fixed reconnection delay (default 2s).
	ReconnectDelay time.Duration
	// OnStateChange, if set, observes connection state transitions.
	OnStateChange func(state ConnState)
}

// StreamTransport owns a single long-lived WebSocket per active session.
// It parses inbound frames into typed events, detects disconnects, and
// drives reconnection with a fixed delay through an explicit, cancellable
// retry timer rather than a self-rescheduling callback, so Disconnect can
// always cancel a pending attempt.
type StreamTransport struct {
	baseURL string
	creds   Credentials
	delay   time.Duration
	onState func(ConnState)

	mu         sync.Mutex
	handler    EventHandler
	sessionID  string // empty when disconnected on purpose
	conn       *websocket.Conn
	cancelRead context.CancelFunc
	retryTimer *time.Timer
	dialing    bool
}

// NewStreamTransport creates a transport; no connection is opened until
// Connect.
func NewStreamTransport(cfg TransportConfig) *StreamTransport {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &StreamTransport{
		baseURL: cfg.BaseURL,
		creds:   cfg.Credentials,
		delay:   delay,
		onState: cfg.OnStateChange,
	}
}

// SetHandler installs the event handler. Must be called before Connect.
func (t *StreamTransport) SetHandler(h EventHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Connect opens the stream for a session. Calling it while a connection
// is open for a different session tears the old one down first; calling
// it for the already-connected session is a no-op.
func (t *StreamTransport) Connect(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	// A dial already in flight for this session counts as connected:
	// t.conn is still nil then, and a second dial would leave two live
	// sockets feeding the handler.
	if t.sessionID == sessionID && (t.conn != nil || t.dialing) {
		t.mu.Unlock()
		return nil
	}
	t.teardownLocked()
	t.sessionID = sessionID
	t.dialing = true
	t.mu.Unlock()

	return t.dial(ctx, sessionID)
}

// Disconnect closes the connection and cancels any pending reconnection
// attempt. Safe to call repeatedly and when no connection exists.
func (t *StreamTransport) Disconnect() {
	t.mu.Lock()
	wasIdle := t.sessionID == "" && t.conn == nil && t.retryTimer == nil
	t.sessionID = ""
	t.teardownLocked()
	t.mu.Unlock()

	if !wasIdle {
		t.notify(ConnDisconnected)
	}
}

// Connected reports whether a live connection is open.
func (t *StreamTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// teardownLocked stops the retry timer, cancels the read loop, and closes
// the connection. Caller holds t.mu.
func (t *StreamTransport) teardownLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	if t.cancelRead != nil {
		t.cancelRead()
		t.cancelRead = nil
	}
	if t.conn != nil {
		_ = t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
	}
}

// dial opens the WebSocket and starts the read loop. On failure it
// schedules the next fixed-delay attempt (unless the transport was
// disconnected or retargeted while dialing).
func (t *StreamTransport) dial(ctx context.Context, sessionID string) error {
	url := fmt.Sprintf("%s/ws/sessions/%s", t.baseURL, sessionID)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: t.creds.header(),
	})

	t.mu.Lock()
	t.dialing = false
	if t.sessionID != sessionID {
		// Disconnected or switched to another session mid-dial.
		t.mu.Unlock()
		if err == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		return nil
	}
	if err != nil {
		t.mu.Unlock()
		t.notify(ConnReconnecting)
		t.scheduleReconnect(sessionID)
		return fmt.Errorf("stream dial for session %s: %w", sessionID, err)
	}
	if t.conn != nil {
		// Another dial for this session won the race; keep the
		// installed connection and drop this one.
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil
	}

	readCtx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancelRead = cancel
	t.mu.Unlock()

	// Successful open clears any surfaced error condition.
	t.notify(ConnConnected)
	go t.readLoop(readCtx, conn, sessionID)
	return nil
}

// readLoop reads frames until the connection fails or is cancelled.
// Individual parse failures are logged and skipped; they never tear down
// the connection.
func (t *StreamTransport) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Deliberate disconnect.
			}

			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.cancelRead = nil
			}
			stale := t.sessionID != sessionID
			t.mu.Unlock()
			if stale {
				return
			}

			slog.Warn("Chat stream closed, scheduling reconnect",
				"session_id", sessionID, "delay", t.delay, "error", err)
			t.notify(ConnReconnecting)
			t.scheduleReconnect(sessionID)
			return
		}

		evt, perr := ParseStreamEvent(data)
		if perr != nil {
			slog.Warn("Discarding malformed stream event",
				"session_id", sessionID, "error", perr)
			continue
		}
		if _, ok := evt.(KeepaliveEvent); ok {
			continue
		}
		if _, ok := evt.(ResyncEvent); ok {
			// The server elided an oversized payload. The content is only
			// available from a fresh snapshot, so drop the connection and
			// let the reconnect's initial event carry it.
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.cancelRead = nil
			}
			stale := t.sessionID != sessionID
			t.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "")
			if stale {
				return
			}

			slog.Warn("Stream event truncated by server, resyncing via reconnect",
				"session_id", sessionID, "delay", t.delay)
			t.notify(ConnReconnecting)
			t.scheduleReconnect(sessionID)
			return
		}

		t.mu.Lock()
		h := t.handler
		t.mu.Unlock()
		if h != nil {
			h.HandleStreamEvent(evt)
		}
	}
}

// scheduleReconnect arms the retry timer for exactly one attempt after the
// fixed delay. A dial already in flight, or an armed timer, suppresses
// scheduling so that at most one attempt is ever pending.
func (t *StreamTransport) scheduleReconnect(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != sessionID || t.dialing || t.retryTimer != nil {
		return
	}

	t.retryTimer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.retryTimer = nil
		if t.sessionID != sessionID {
			t.mu.Unlock()
			return
		}
		t.dialing = true
		t.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		// dial schedules the next attempt itself on failure.
		_ = t.dial(dialCtx, sessionID)
	})
}

func (t *StreamTransport) notify(state ConnState) {
	if t.onState != nil {
		t.onState(state)
	}
}

// Credentials identify the current user to the backend. They are injected
// at construction; the engine never reads ambient authentication state.
type Credentials struct {
	UserID   string
	UserName string
	Token    string
}

// Valid reports whether the credential can authenticate requests.
func (c Credentials) Valid() bool {
	return c.UserID != "" && c.Token != ""
}

func (c Credentials) header() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserID != "" {
		h.Set("X-Forwarded-User", c.UserID)
	}
	if c.UserName != "" {
		h.Set("X-Forwarded-Preferred-Username", c.UserName)
	}
	return h
}
