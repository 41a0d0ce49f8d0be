package client

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// Wire event types. These must stay in sync with the server-side constants
// in pkg/events; the contract test in wire_contract_test.go guards this.
const (
	eventTypeInitial      = "initial"
	eventTypeNewMessage   = "new_message"
	eventTypeStatusUpdate = "status_update"
	eventTypeAdminJoined  = "admin_joined"
	eventTypeAdminLeft    = "admin_left"
	eventTypeKeepalive    = "keepalive"

	eventTypeConnected           = "connected"
	eventTypeNewSession          = "new_session"
	eventTypeSessionAssigned     = "session_assigned"
	eventTypeSessionStatusChange = "session_status_change"
)

// StreamEvent is one parsed frame from a per-session stream. Payloads are
// validated at the transport boundary; nothing downstream sees raw JSON.
type StreamEvent interface{ streamEvent() }

// InitialEvent is the full snapshot delivered on (re)connect.
type InitialEvent struct {
	Session  *models.ChatSession
	Messages []models.ChatMessage
}

// NewMessageEvent carries a single authoritative message.
type NewMessageEvent struct {
	Message models.ChatMessage
}

// StatusUpdateEvent updates the session status only.
type StatusUpdateEvent struct {
	Status models.SessionStatus
}

// AdminJoinedEvent reports an operator joining the session.
type AdminJoinedEvent struct {
	AdminID   string
	AdminName string
}

// AdminLeftEvent reports the assigned operator leaving the session.
type AdminLeftEvent struct {
	AdminID string
}

// KeepaliveEvent is a server heartbeat; the transport discards it.
type KeepaliveEvent struct{}

// ResyncEvent marks a frame whose payload exceeded the server's NOTIFY
// limit and was replaced by a truncation envelope. The full content is
// only recoverable from a fresh snapshot, so the transport reconnects
// instead of delivering the frame.
type ResyncEvent struct{}

func (InitialEvent) streamEvent()      {}
func (NewMessageEvent) streamEvent()   {}
func (StatusUpdateEvent) streamEvent() {}
func (AdminJoinedEvent) streamEvent()  {}
func (AdminLeftEvent) streamEvent()    {}
func (KeepaliveEvent) streamEvent()    {}
func (ResyncEvent) streamEvent()       {}

// ParseStreamEvent decodes one session-stream frame into its typed event.
// Unknown types and malformed payloads are errors; the transport logs and
// discards them without tearing down the connection.
func ParseStreamEvent(data []byte) (StreamEvent, error) {
	var head struct {
		Type      string `json:"type"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if head.Truncated {
		return ResyncEvent{}, nil
	}

	switch head.Type {
	case eventTypeKeepalive:
		return KeepaliveEvent{}, nil

	case eventTypeInitial:
		var p struct {
			Session  *models.ChatSession  `json:"session"`
			Messages []models.ChatMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed initial payload: %w", err)
		}
		return InitialEvent{Session: p.Session, Messages: p.Messages}, nil

	case eventTypeNewMessage:
		var p struct {
			Message models.ChatMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed new_message payload: %w", err)
		}
		if p.Message.ID == "" {
			return nil, fmt.Errorf("new_message without message id")
		}
		return NewMessageEvent{Message: p.Message}, nil

	case eventTypeStatusUpdate:
		var p struct {
			Status models.SessionStatus `json:"status"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed status_update payload: %w", err)
		}
		if !p.Status.Valid() {
			return nil, fmt.Errorf("status_update with unknown status %q", p.Status)
		}
		return StatusUpdateEvent{Status: p.Status}, nil

	case eventTypeAdminJoined:
		var p struct {
			AdminID   string `json:"admin_id"`
			AdminName string `json:"admin_name"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed admin_joined payload: %w", err)
		}
		return AdminJoinedEvent{AdminID: p.AdminID, AdminName: p.AdminName}, nil

	case eventTypeAdminLeft:
		var p struct {
			AdminID string `json:"admin_id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed admin_left payload: %w", err)
		}
		return AdminLeftEvent{AdminID: p.AdminID}, nil
	}

	return nil, fmt.Errorf("unknown event type %q", head.Type)
}

// NotificationEvent is one parsed frame from the operator fan-out stream.
// Purely transient; classified for a one-shot toast/badge and discarded.
type NotificationEvent interface{ notificationEvent() }

// ConnectedNotification confirms the fan-out stream is established.
type ConnectedNotification struct{}

// NewSessionNotification announces a session needing assignment.
type NewSessionNotification struct {
	Session models.ChatSession
}

// MessageNotification previews a new message in any relevant session.
type MessageNotification struct {
	SessionID string
	Message   models.ChatMessage
}

// SessionAssignedNotification reports an operator assignment.
type SessionAssignedNotification struct {
	SessionID string
	AdminID   string
	AdminName string
}

// SessionStatusNotification reports a status change in any relevant session.
type SessionStatusNotification struct {
	SessionID string
	Status    models.SessionStatus
}

func (ConnectedNotification) notificationEvent()       {}
func (NewSessionNotification) notificationEvent()      {}
func (MessageNotification) notificationEvent()         {}
func (SessionAssignedNotification) notificationEvent() {}
func (SessionStatusNotification) notificationEvent()   {}

// ParseNotificationEvent decodes one fan-out frame into its typed event.
func ParseNotificationEvent(data []byte) (NotificationEvent, error) {
	var head struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed notification frame: %w", err)
	}

	switch head.Type {
	case eventTypeKeepalive:
		return nil, nil

	case eventTypeConnected:
		return ConnectedNotification{}, nil

	case eventTypeNewSession:
		var p struct {
			Session models.ChatSession `json:"session"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed new_session payload: %w", err)
		}
		return NewSessionNotification{Session: p.Session}, nil

	case eventTypeNewMessage:
		var p struct {
			Message models.ChatMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed new_message payload: %w", err)
		}
		return MessageNotification{SessionID: head.SessionID, Message: p.Message}, nil

	case eventTypeSessionAssigned:
		var p struct {
			AdminID   string `json:"admin_id"`
			AdminName string `json:"admin_name"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed session_assigned payload: %w", err)
		}
		return SessionAssignedNotification{
			SessionID: head.SessionID, AdminID: p.AdminID, AdminName: p.AdminName,
		}, nil

	case eventTypeSessionStatusChange, eventTypeStatusUpdate:
		var p struct {
			Status models.SessionStatus `json:"status"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed status payload: %w", err)
		}
		return SessionStatusNotification{SessionID: head.SessionID, Status: p.Status}, nil
	}

	return nil, fmt.Errorf("unknown notification type %q", head.Type)
}
