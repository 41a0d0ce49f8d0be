package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

func TestParseStreamEvent(t *testing.T) {
	t.Run("initial", func(t *testing.T) {
		data := []byte(`{
			"type": "initial",
			"session_id": "sess-1",
			"session": {"id": "sess-1", "status": "waiting"},
			"messages": [
				{"id": "m1", "session_id": "sess-1", "content": "hello", "created_at": "2026-08-10T12:00:00Z"}
			]
		}`)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)

		initial, ok := evt.(InitialEvent)
		require.True(t, ok)
		require.NotNil(t, initial.Session)
		assert.Equal(t, "sess-1", initial.Session.ID)
		assert.Equal(t, models.StatusWaiting, initial.Session.Status)
		require.Len(t, initial.Messages, 1)
		assert.Equal(t, "m1", initial.Messages[0].ID)
	})

	t.Run("new message with local id", func(t *testing.T) {
		data := []byte(`{
			"type": "new_message",
			"session_id": "sess-1",
			"message": {"id": "m2", "local_id": "optimistic-123-ab", "content": "hi"}
		}`)

		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)

		nm, ok := evt.(NewMessageEvent)
		require.True(t, ok)
		assert.Equal(t, "m2", nm.Message.ID)
		assert.Equal(t, "optimistic-123-ab", nm.Message.LocalID)
	})

	t.Run("new message without id is rejected", func(t *testing.T) {
		_, err := ParseStreamEvent([]byte(`{"type": "new_message", "message": {"content": "x"}}`))
		require.Error(t, err)
	})

	t.Run("status update", func(t *testing.T) {
		evt, err := ParseStreamEvent([]byte(`{"type": "status_update", "status": "resolved"}`))
		require.NoError(t, err)
		su, ok := evt.(StatusUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, models.StatusResolved, su.Status)
	})

	t.Run("status update with unknown status is rejected", func(t *testing.T) {
		_, err := ParseStreamEvent([]byte(`{"type": "status_update", "status": "exploded"}`))
		require.Error(t, err)
	})

	t.Run("admin joined", func(t *testing.T) {
		evt, err := ParseStreamEvent([]byte(`{"type": "admin_joined", "admin_id": "op-1", "admin_name": "Sam"}`))
		require.NoError(t, err)
		aj, ok := evt.(AdminJoinedEvent)
		require.True(t, ok)
		assert.Equal(t, "op-1", aj.AdminID)
		assert.Equal(t, "Sam", aj.AdminName)
	})

	t.Run("admin left", func(t *testing.T) {
		evt, err := ParseStreamEvent([]byte(`{"type": "admin_left", "admin_id": "op-1"}`))
		require.NoError(t, err)
		al, ok := evt.(AdminLeftEvent)
		require.True(t, ok)
		assert.Equal(t, "op-1", al.AdminID)
	})

	t.Run("keepalive", func(t *testing.T) {
		evt, err := ParseStreamEvent([]byte(`{"type": "keepalive"}`))
		require.NoError(t, err)
		_, ok := evt.(KeepaliveEvent)
		assert.True(t, ok)
	})

	t.Run("truncated envelope signals resync", func(t *testing.T) {
		// Oversized payloads arrive as a bare envelope with no message
		// body; the parser must not reject it as an invalid new_message.
		data := []byte(`{"type": "new_message", "session_id": "sess-1", "truncated": true}`)
		evt, err := ParseStreamEvent(data)
		require.NoError(t, err)
		_, ok := evt.(ResyncEvent)
		assert.True(t, ok)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := ParseStreamEvent([]byte(`{"type": "mystery"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mystery")
	})

	t.Run("malformed frame is rejected", func(t *testing.T) {
		_, err := ParseStreamEvent([]byte(`{not json`))
		require.Error(t, err)
	})
}

func TestParseNotificationEvent(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		evt, err := ParseNotificationEvent([]byte(`{"type": "connected"}`))
		require.NoError(t, err)
		_, ok := evt.(ConnectedNotification)
		assert.True(t, ok)
	})

	t.Run("new session", func(t *testing.T) {
		data := []byte(`{
			"type": "new_session",
			"session_id": "sess-1",
			"session": {"id": "sess-1", "subject": "billing", "status": "waiting"}
		}`)
		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		ns, ok := evt.(NewSessionNotification)
		require.True(t, ok)
		assert.Equal(t, "billing", ns.Session.Subject)
	})

	t.Run("message preview", func(t *testing.T) {
		data := []byte(`{
			"type": "new_message",
			"session_id": "sess-1",
			"message": {"id": "m1", "content": "help"}
		}`)
		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		mn, ok := evt.(MessageNotification)
		require.True(t, ok)
		assert.Equal(t, "sess-1", mn.SessionID)
		assert.Equal(t, "m1", mn.Message.ID)
	})

	t.Run("truncated message preview keeps session id", func(t *testing.T) {
		// The fan-out stream has no snapshot to resync from; a truncated
		// preview still identifies the session for the badge.
		data := []byte(`{"type": "new_message", "session_id": "sess-1", "truncated": true}`)
		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		mn, ok := evt.(MessageNotification)
		require.True(t, ok)
		assert.Equal(t, "sess-1", mn.SessionID)
		assert.Empty(t, mn.Message.ID)
	})

	t.Run("session assigned", func(t *testing.T) {
		data := []byte(`{"type": "session_assigned", "session_id": "sess-1", "admin_id": "op-1", "admin_name": "Sam"}`)
		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		sa, ok := evt.(SessionAssignedNotification)
		require.True(t, ok)
		assert.Equal(t, "op-1", sa.AdminID)
	})

	t.Run("session status change", func(t *testing.T) {
		data := []byte(`{"type": "session_status_change", "session_id": "sess-1", "status": "closed"}`)
		evt, err := ParseNotificationEvent(data)
		require.NoError(t, err)
		ss, ok := evt.(SessionStatusNotification)
		require.True(t, ok)
		assert.Equal(t, models.StatusClosed, ss.Status)
	})

	t.Run("keepalive yields nil event", func(t *testing.T) {
		evt, err := ParseNotificationEvent([]byte(`{"type": "keepalive"}`))
		require.NoError(t, err)
		assert.Nil(t, evt)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := ParseNotificationEvent([]byte(`{"type": "mystery"}`))
		require.Error(t, err)
	})
}
