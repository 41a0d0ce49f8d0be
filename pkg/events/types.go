// Package events provides real-time event delivery via WebSocket and
// PostgreSQL NOTIFY/LISTEN for cross-pod distribution.
//
// Two kinds of WebSocket streams exist:
//
//   - Per-session streams (/ws/sessions/{id}) deliver the full message
//     flow for one chat session: an initial snapshot on connect, then
//     incremental new_message / status_update / admin_joined /
//     admin_left events.
//
//   - The notification stream (/ws/notifications) is a global fan-out
//     for operators: new_session, new_message previews, assignment and
//     status changes across all sessions. Events on this stream are
//     transient and advisory; authoritative state lives in the
//     per-session streams and the REST API.
//
// Message and status events are persisted to the events table and
// broadcast via NOTIFY in the same transaction, so a NOTIFY is never
// observed for an uncommitted row. Notification-stream copies are
// NOTIFY-only.
package events

// Persistent event types (stored in DB + NOTIFY).
const (
	EventTypeNewMessage   = "new_message"
	EventTypeStatusUpdate = "status_update"
	EventTypeAdminJoined  = "admin_joined"
	EventTypeAdminLeft    = "admin_left"
)

// Server-generated event types never stored in the events table.
const (
	// EventTypeInitial is the snapshot sent once per stream connect.
	EventTypeInitial = "initial"
	// EventTypeKeepalive is the periodic heartbeat on every stream.
	EventTypeKeepalive = "keepalive"
	// EventTypeConnected confirms a notification stream is established.
	EventTypeConnected = "connected"
)

// Transient notification-stream event types (NOTIFY only).
const (
	EventTypeNewSession          = "new_session"
	EventTypeSessionAssigned     = "session_assigned"
	EventTypeSessionStatusChange = "session_status_change"
)

// NotificationsChannel is the global fan-out channel operators watch.
const NotificationsChannel = "notifications"

// SessionChannel returns the channel name for one session's events.
// Format: "chat:{session_id}"
func SessionChannel(sessionID string) string {
	return "chat:" + sessionID
}
