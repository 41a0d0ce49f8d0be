package events

import (
	"github.com/codeready-toolchain/livechat/pkg/models"
)

// NewMessagePayload is the payload for new_message events. Published on
// the session channel (persistent) and, as a preview copy, on the
// notifications channel (transient).
type NewMessagePayload struct {
	Type      string             `json:"type"`       // always EventTypeNewMessage
	SessionID string             `json:"session_id"` // owning session UUID
	Message   models.ChatMessage `json:"message"`    // authoritative message, local_id echoed when provided
	Timestamp string             `json:"timestamp"`  // RFC3339Nano
}

// StatusUpdatePayload is the payload for status_update events. Published
// on the session channel when the session transitions between lifecycle
// states; a session_status_change copy goes to the notifications channel.
type StatusUpdatePayload struct {
	Type      string               `json:"type"`       // EventTypeStatusUpdate or EventTypeSessionStatusChange
	SessionID string               `json:"session_id"` // session UUID
	Status    models.SessionStatus `json:"status"`     // waiting, active, resolved, closed
	Timestamp string               `json:"timestamp"`  // RFC3339Nano
}

// AdminJoinedPayload is the payload for admin_joined events. Published on
// the session channel when an operator takes the session; a
// session_assigned copy goes to the notifications channel.
type AdminJoinedPayload struct {
	Type      string `json:"type"`       // EventTypeAdminJoined or EventTypeSessionAssigned
	SessionID string `json:"session_id"` // session UUID
	AdminID   string `json:"admin_id"`   // operator identity
	AdminName string `json:"admin_name"` // operator display name
	Timestamp string `json:"timestamp"`  // RFC3339Nano
}

// AdminLeftPayload is the payload for admin_left events.
type AdminLeftPayload struct {
	Type      string `json:"type"`       // always EventTypeAdminLeft
	SessionID string `json:"session_id"` // session UUID
	AdminID   string `json:"admin_id"`   // operator who left
	Timestamp string `json:"timestamp"`  // RFC3339Nano
}

// NewSessionPayload is the payload for new_session notification events.
// Transient; announces a session waiting for assignment.
type NewSessionPayload struct {
	Type      string             `json:"type"`       // always EventTypeNewSession
	SessionID string             `json:"session_id"` // session UUID
	Session   models.ChatSession `json:"session"`    // full session for list display
	Timestamp string             `json:"timestamp"`  // RFC3339Nano
}

// InitialPayload is the snapshot sent once per stream connect. Server
// generated, never stored in the events table.
type InitialPayload struct {
	Type      string               `json:"type"`       // always EventTypeInitial
	SessionID string               `json:"session_id"` // session UUID
	Session   *models.ChatSession  `json:"session"`    // current session state
	Messages  []models.ChatMessage `json:"messages"`   // full ordered history
	Timestamp string               `json:"timestamp"`  // RFC3339Nano
}

// KeepalivePayload is the heartbeat frame sent on idle streams.
type KeepalivePayload struct {
	Type      string `json:"type"`      // always EventTypeKeepalive
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// ConnectedPayload confirms a notification stream is established.
type ConnectedPayload struct {
	Type      string `json:"type"`      // always EventTypeConnected
	Timestamp string `json:"timestamp"` // RFC3339Nano
}
