package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/livechat/pkg/events"
	"github.com/codeready-toolchain/livechat/pkg/models"
)

// These tests pin the wire contract between the server-side payloads in
// pkg/events and the client-side parsers: every payload the server emits
// must round-trip into the matching typed event.

func TestWireContractEventTypes(t *testing.T) {
	assert.Equal(t, events.EventTypeInitial, eventTypeInitial)
	assert.Equal(t, events.EventTypeNewMessage, eventTypeNewMessage)
	assert.Equal(t, events.EventTypeStatusUpdate, eventTypeStatusUpdate)
	assert.Equal(t, events.EventTypeAdminJoined, eventTypeAdminJoined)
	assert.Equal(t, events.EventTypeAdminLeft, eventTypeAdminLeft)
	assert.Equal(t, events.EventTypeKeepalive, eventTypeKeepalive)
	assert.Equal(t, events.EventTypeConnected, eventTypeConnected)
	assert.Equal(t, events.EventTypeNewSession, eventTypeNewSession)
	assert.Equal(t, events.EventTypeSessionAssigned, eventTypeSessionAssigned)
	assert.Equal(t, events.EventTypeSessionStatusChange, eventTypeSessionStatusChange)
}

func TestWireContractSessionStream(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	t.Run("initial payload", func(t *testing.T) {
		payload := events.InitialPayload{
			Type:      events.EventTypeInitial,
			SessionID: "sess-1",
			Session:   &models.ChatSession{ID: "sess-1", Status: models.StatusActive},
			Messages: []models.ChatMessage{
				{ID: "m1", SessionID: "sess-1", Content: "hello", CreatedAt: now},
			},
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		initial, ok := evt.(InitialEvent)
		require.True(t, ok)
		assert.Equal(t, models.StatusActive, initial.Session.Status)
		require.Len(t, initial.Messages, 1)
		assert.Equal(t, "m1", initial.Messages[0].ID)
	})

	t.Run("new message payload", func(t *testing.T) {
		payload := events.NewMessagePayload{
			Type:      events.EventTypeNewMessage,
			SessionID: "sess-1",
			Message: models.ChatMessage{
				ID:        "m1",
				LocalID:   "optimistic-1-ab",
				SessionID: "sess-1",
				Content:   "hello",
				CreatedAt: now,
			},
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		nm, ok := evt.(NewMessageEvent)
		require.True(t, ok)
		assert.Equal(t, "optimistic-1-ab", nm.Message.LocalID)
	})

	t.Run("status update payload", func(t *testing.T) {
		payload := events.StatusUpdatePayload{
			Type:      events.EventTypeStatusUpdate,
			SessionID: "sess-1",
			Status:    models.StatusResolved,
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		su, ok := evt.(StatusUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, models.StatusResolved, su.Status)
	})

	t.Run("admin joined payload", func(t *testing.T) {
		payload := events.AdminJoinedPayload{
			Type:      events.EventTypeAdminJoined,
			SessionID: "sess-1",
			AdminID:   "op-1",
			AdminName: "Sam",
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		aj, ok := evt.(AdminJoinedEvent)
		require.True(t, ok)
		assert.Equal(t, "op-1", aj.AdminID)
		assert.Equal(t, "Sam", aj.AdminName)
	})

	t.Run("admin left payload", func(t *testing.T) {
		payload := events.AdminLeftPayload{
			Type:      events.EventTypeAdminLeft,
			SessionID: "sess-1",
			AdminID:   "op-1",
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		al, ok := evt.(AdminLeftEvent)
		require.True(t, ok)
		assert.Equal(t, "op-1", al.AdminID)
	})

	t.Run("truncation envelope", func(t *testing.T) {
		// What the publisher emits when a payload exceeds the notify
		// limit: routing fields plus the truncated marker, no body.
		data := []byte(`{"type":"new_message","session_id":"sess-1","truncated":true}`)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		_, ok := evt.(ResyncEvent)
		assert.True(t, ok)
	})

	t.Run("keepalive payload", func(t *testing.T) {
		payload := events.KeepalivePayload{
			Type:      events.EventTypeKeepalive,
			Timestamp: now.Format(time.RFC3339Nano),
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		_, ok := evt.(KeepaliveEvent)
		assert.True(t, ok)
	})
}

func TestWireContractNotificationStream(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	t.Run("connected payload", func(t *testing.T) {
		data, err := json.Marshal(events.ConnectedPayload{
			Type:      events.EventTypeConnected,
			Timestamp: now.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		_, ok := evt.(ConnectedNotification)
		assert.True(t, ok)
	})

	t.Run("new session payload", func(t *testing.T) {
		data, err := json.Marshal(events.NewSessionPayload{
			Type:      events.EventTypeNewSession,
			SessionID: "sess-1",
			Session:   models.ChatSession{ID: "sess-1", Subject: "billing", Status: models.StatusWaiting},
			Timestamp: now.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		ns, ok := evt.(NewSessionNotification)
		require.True(t, ok)
		assert.Equal(t, "billing", ns.Session.Subject)
	})

	t.Run("message preview payload", func(t *testing.T) {
		data, err := json.Marshal(events.NewMessagePayload{
			Type:      events.EventTypeNewMessage,
			SessionID: "sess-1",
			Message:   models.ChatMessage{ID: "m1", Content: "help", CreatedAt: now},
			Timestamp: now.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		mn, ok := evt.(MessageNotification)
		require.True(t, ok)
		assert.Equal(t, "sess-1", mn.SessionID)
		assert.Equal(t, "m1", mn.Message.ID)
	})

	t.Run("session assigned payload", func(t *testing.T) {
		data, err := json.Marshal(events.AdminJoinedPayload{
			Type:      events.EventTypeSessionAssigned,
			SessionID: "sess-1",
			AdminID:   "op-1",
			AdminName: "Sam",
			Timestamp: now.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		sa, ok := evt.(SessionAssignedNotification)
		require.True(t, ok)
		assert.Equal(t, "sess-1", sa.SessionID)
		assert.Equal(t, "Sam", sa.AdminName)
	})

	t.Run("session status change payload", func(t *testing.T) {
		data, err := json.Marshal(events.StatusUpdatePayload{
			Type:      events.EventTypeSessionStatusChange,
			SessionID: "sess-1",
			Status:    models.StatusClosed,
			Timestamp: now.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		ss, ok := evt.(SessionStatusNotification)
		require.True(t, ok)
		assert.Equal(t, models.StatusClosed, ss.Status)
	})
}
