package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// listenTimeout bounds how long a LISTEN command may block when a stream
// subscribes to a new PG channel. Without this, a stalled connection
// would block the attaching client indefinitely.
const listenTimeout = 10 * time.Second

// keepaliveInterval is how often idle streams receive a heartbeat frame.
const keepaliveInterval = 30 * time.Second

// SnapshotProvider loads the initial snapshot for a session stream.
// Implemented by the API server on top of the session and message
// services.
type SnapshotProvider interface {
	SessionSnapshot(ctx context.Context, sessionID string) (*models.ChatSession, []models.ChatMessage, error)
}

// ConnectionManager manages WebSocket connections and channel
// subscriptions. Each Go process (pod) has one instance. Streams are
// path-scoped: a connection's channel is fixed by the endpoint it dialed,
// so there is no client-driven subscribe protocol.
type ConnectionManager struct {
	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Channel subscriptions: channel → set of connection_ids
	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	// snapshots loads the initial payload for session streams
	// (set after construction).
	snapshots   SnapshotProvider
	snapshotsMu sync.RWMutex

	// NotifyListener for dynamic LISTEN/UNLISTEN (set after construction).
	listener   *NotifyListener
	listenerMu sync.RWMutex

	// Write timeout for WebSocket sends.
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client bound to one channel.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	channel string
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// SetListener sets the NotifyListener for dynamic LISTEN/UNLISTEN. Called
// once during startup after both manager and listener are created.
func (m *ConnectionManager) SetListener(l *NotifyListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

// SetSnapshotProvider sets the snapshot source for session streams.
// Called once during startup.
func (m *ConnectionManager) SetSnapshotProvider(sp SnapshotProvider) {
	m.snapshotsMu.Lock()
	defer m.snapshotsMu.Unlock()
	m.snapshots = sp
}

// HandleSession manages the lifecycle of one per-session stream. Called
// by the WebSocket HTTP handler after upgrade; blocks until the
// connection closes.
//
// The subscribe happens before the snapshot query, so an event committed
// between the two is delivered twice at worst, never lost. The client's
// store deduplicates by message id.
func (m *ConnectionManager) HandleSession(parentCtx context.Context, conn *websocket.Conn, sessionID string) {
	c := m.attach(parentCtx, conn, SessionChannel(sessionID))
	if c == nil {
		_ = conn.Close(websocket.StatusInternalError, "channel listen failed")
		return
	}
	defer m.detach(c)

	if err := m.sendInitial(c, sessionID); err != nil {
		slog.Warn("Failed to send initial snapshot",
			"connection_id", c.ID, "session_id", sessionID, "error", err)
		return
	}

	go m.keepalive(c)
	m.drain(c)
}

// HandleNotifications manages the lifecycle of one operator notification
// stream. Blocks until the connection closes.
func (m *ConnectionManager) HandleNotifications(parentCtx context.Context, conn *websocket.Conn) {
	c := m.attach(parentCtx, conn, NotificationsChannel)
	if c == nil {
		_ = conn.Close(websocket.StatusInternalError, "channel listen failed")
		return
	}
	defer m.detach(c)

	m.sendJSON(c, ConnectedPayload{
		Type:      EventTypeConnected,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})

	go m.keepalive(c)
	m.drain(c)
}

// Broadcast sends an event payload to all connections subscribed to the
// given channel. Called by the NotifyListener's receive loop.
func (m *ConnectionManager) Broadcast(channel string, event []byte) {
	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	// Snapshot connection pointers under the lock, then release before
	// sending. Holding mu.RLock during writes (up to writeTimeout per
	// connection) would stall register/unregister.
	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, event); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", conn.ID, "channel", channel, "error", err)
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount returns the number of subscribers for a channel.
// Unexported; used by tests to poll instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

// attach registers a connection on its channel and starts LISTEN if it is
// the first subscriber. Returns nil when LISTEN fails so the caller can
// close the socket instead of serving a stream that will never receive
// events.
func (m *ConnectionManager) attach(parentCtx context.Context, conn *websocket.Conn, channel string) *Connection {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:      connID,
		Conn:    conn,
		channel: channel,
		ctx:     ctx,
		cancel:  cancel,
	}

	m.channelMu.Lock()
	needsListen := false
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
		needsListen = true
	}
	m.channels[channel][connID] = true
	m.channelMu.Unlock()

	if needsListen {
		m.listenerMu.RLock()
		l := m.listener
		m.listenerMu.RUnlock()
		if l != nil {
			listenCtx, listenCancel := context.WithTimeout(context.Background(), listenTimeout)
			defer listenCancel()
			if err := l.Subscribe(listenCtx, channel); err != nil {
				slog.Error("Failed to LISTEN on channel", "channel", channel, "error", err)
				m.channelMu.Lock()
				delete(m.channels[channel], connID)
				if len(m.channels[channel]) == 0 {
					delete(m.channels, channel)
				}
				m.channelMu.Unlock()
				cancel()
				return nil
			}
		}
	}

	m.mu.Lock()
	m.connections[connID] = c
	m.mu.Unlock()
	return c
}

// detach removes a connection, stops LISTEN when it was the channel's
// last subscriber, and closes the socket.
func (m *ConnectionManager) detach(c *Connection) {
	m.channelMu.Lock()
	if subs, exists := m.channels[c.channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, c.channel)
			// Last subscriber left. The goroutine re-checks m.channels
			// before issuing UNLISTEN so a rapid detach/attach cycle on
			// the same session does not drop an active LISTEN.
			m.listenerMu.RLock()
			l := m.listener
			m.listenerMu.RUnlock()
			if l != nil {
				channel := c.channel
				go func() {
					m.channelMu.RLock()
					_, resubscribed := m.channels[channel]
					m.channelMu.RUnlock()
					if resubscribed {
						return
					}
					if err := l.Unsubscribe(context.Background(), channel); err != nil {
						slog.Error("Failed to UNLISTEN channel", "channel", channel, "error", err)
					}
				}()
			}
		}
	}
	m.channelMu.Unlock()

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendInitial loads and sends the snapshot for a session stream.
func (m *ConnectionManager) sendInitial(c *Connection, sessionID string) error {
	m.snapshotsMu.RLock()
	sp := m.snapshots
	m.snapshotsMu.RUnlock()
	if sp == nil {
		return nil
	}

	session, messages, err := sp.SessionSnapshot(c.ctx, sessionID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	payload := InitialPayload{
		Type:      EventTypeInitial,
		SessionID: sessionID,
		Session:   session,
		Messages:  messages,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.sendRaw(c, data)
}

// keepalive sends periodic heartbeat frames until the connection closes.
func (m *ConnectionManager) keepalive(c *Connection) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			m.sendJSON(c, KeepalivePayload{
				Type:      EventTypeKeepalive,
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
	}
}

// drain reads and discards client frames until the connection closes.
// Streams are server-to-client only; the read detects disconnects.
func (m *ConnectionManager) drain(c *Connection) {
	for {
		if _, _, err := c.Conn.Read(c.ctx); err != nil {
			return
		}
	}
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
