package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// DefaultNotificationReconnectDelay is the fixed delay between
// reconnection attempts for the global notification stream.
const DefaultNotificationReconnectDelay = 3 * time.Second

// notificationLogCap bounds the retained notification history; older
// entries are dropped first.
const notificationLogCap = 200

// NotificationStreamConfig configures a NotificationStream.
type NotificationStreamConfig struct {
	// BaseURL is the ws:// or wss:// origin of the backend.
	BaseURL string
	// Credentials identify the connecting operator; sent as dial headers.
	Credentials Credentials
	// ReconnectDelay overrides the fixed reconnection delay (default 3s).
	ReconnectDelay time.Duration
	// OnEvent, if set, receives each parsed notification as it arrives.
	OnEvent func(evt NotificationEvent)
	// OnStateChange, if set, observes connection state transitions.
	OnStateChange func(state ConnState)
}

// NotificationStream consumes the global operator fan-out channel. It is
// independent of any session stream: an operator watches it while having
// zero or more session streams open. Reconnection uses the same fixed
// delay pattern as StreamTransport, at a longer interval since the
// channel is advisory.
type NotificationStream struct {
	baseURL string
	creds   Credentials
	delay   time.Duration
	onEvent func(NotificationEvent)
	onState func(ConnState)

	mu         sync.Mutex
	running    bool
	conn       *websocket.Conn
	cancelRead context.CancelFunc
	retryTimer *time.Timer
	dialing    bool
	log        []NotificationEvent
}

// NewNotificationStream creates a stream; no connection is opened until
// Start.
func NewNotificationStream(cfg NotificationStreamConfig) *NotificationStream {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultNotificationReconnectDelay
	}
	return &NotificationStream{
		baseURL: cfg.BaseURL,
		creds:   cfg.Credentials,
		delay:   delay,
		onEvent: cfg.OnEvent,
		onState: cfg.OnStateChange,
	}
}

// Start opens the notification stream. A no-op when already running.
func (n *NotificationStream) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	n.dialing = true
	n.mu.Unlock()

	return n.dial(ctx)
}

// Stop closes the stream and cancels any pending reconnection attempt.
// Safe to call repeatedly.
func (n *NotificationStream) Stop() {
	n.mu.Lock()
	wasRunning := n.running
	n.running = false
	if n.retryTimer != nil {
		n.retryTimer.Stop()
		n.retryTimer = nil
	}
	if n.cancelRead != nil {
		n.cancelRead()
		n.cancelRead = nil
	}
	if n.conn != nil {
		_ = n.conn.Close(websocket.StatusNormalClosure, "")
		n.conn = nil
	}
	n.mu.Unlock()

	if wasRunning {
		n.notify(ConnDisconnected)
	}
}

// Connected reports whether a live connection is open.
func (n *NotificationStream) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn != nil
}

// Notifications returns a snapshot of the retained notification history,
// oldest first.
func (n *NotificationStream) Notifications() []NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationEvent, len(n.log))
	copy(out, n.log)
	return out
}

func (n *NotificationStream) dial(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/notifications", n.baseURL)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: n.creds.header(),
	})

	n.mu.Lock()
	n.dialing = false
	if !n.running {
		n.mu.Unlock()
		if err == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		return nil
	}
	if err != nil {
		n.mu.Unlock()
		n.notify(ConnReconnecting)
		n.scheduleReconnect()
		return fmt.Errorf("notification stream dial: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	n.conn = conn
	n.cancelRead = cancel
	n.mu.Unlock()

	n.notify(ConnConnected)
	go n.readLoop(readCtx, conn)
	return nil
}

func (n *NotificationStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Deliberate stop.
			}

			n.mu.Lock()
			if n.conn == conn {
				n.conn = nil
				n.cancelRead = nil
			}
			running := n.running
			n.mu.Unlock()
			if !running {
				return
			}

			slog.Warn("Notification stream closed, scheduling reconnect",
				"delay", n.delay, "error", err)
			n.notify(ConnReconnecting)
			n.scheduleReconnect()
			return
		}

		evt, perr := ParseNotificationEvent(data)
		if perr != nil {
			slog.Warn("Discarding malformed notification", "error", perr)
			continue
		}
		if evt == nil {
			continue // Keepalive.
		}

		n.record(evt)
		if n.onEvent != nil {
			n.onEvent(evt)
		}
	}
}

// record appends to the bounded notification log.
func (n *NotificationStream) record(evt NotificationEvent) {
	n.mu.Lock()
	n.log = append(n.log, evt)
	if len(n.log) > notificationLogCap {
		n.log = n.log[len(n.log)-notificationLogCap:]
	}
	n.mu.Unlock()
}

// scheduleReconnect arms the retry timer for exactly one attempt after
// the fixed delay; a dial in flight or an armed timer suppresses it.
func (n *NotificationStream) scheduleReconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running || n.dialing || n.retryTimer != nil {
		return
	}

	n.retryTimer = time.AfterFunc(n.delay, func() {
		n.mu.Lock()
		n.retryTimer = nil
		if !n.running {
			n.mu.Unlock()
			return
		}
		n.dialing = true
		n.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		_ = n.dial(dialCtx)
	})
}

func (n *NotificationStream) notify(state ConnState) {
	if n.onState != nil {
		n.onState(state)
	}
}
