package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStream(t *testing.T) {
	t.Run("delivers parsed notifications", func(t *testing.T) {
		srv := wsTestServer(t,
			[]byte(`{"type": "connected"}`),
			[]byte(`{"type": "new_session", "session_id": "sess-1", "session": {"id": "sess-1", "status": "waiting"}}`),
			[]byte(`{"type": "keepalive"}`),
			[]byte(`{"type": "session_assigned", "session_id": "sess-1", "admin_id": "op-1", "admin_name": "Sam"}`),
		)

		received := make(chan NotificationEvent, 16)
		stream := NewNotificationStream(NotificationStreamConfig{
			BaseURL:     wsURL(srv),
			Credentials: testCreds(),
			OnEvent:     func(evt NotificationEvent) { received <- evt },
		})
		t.Cleanup(stream.Stop)

		require.NoError(t, stream.Start(context.Background()))

		next := func() NotificationEvent {
			select {
			case evt := <-received:
				return evt
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for notification")
				return nil
			}
		}

		_, ok := next().(ConnectedNotification)
		require.True(t, ok)

		ns, ok := next().(NewSessionNotification)
		require.True(t, ok)
		assert.Equal(t, "sess-1", ns.Session.ID)

		// The keepalive is skipped; session_assigned follows directly.
		sa, ok := next().(SessionAssignedNotification)
		require.True(t, ok)
		assert.Equal(t, "op-1", sa.AdminID)

		log := stream.Notifications()
		assert.Len(t, log, 3)
	})

	t.Run("start is idempotent", func(t *testing.T) {
		srv := wsTestServer(t)
		stream := NewNotificationStream(NotificationStreamConfig{
			BaseURL:     wsURL(srv),
			Credentials: testCreds(),
		})
		t.Cleanup(stream.Stop)

		require.NoError(t, stream.Start(context.Background()))
		require.True(t, stream.Connected())
		require.NoError(t, stream.Start(context.Background()))
	})

	t.Run("stop cancels pending retry", func(t *testing.T) {
		recorder := &stateRecorder{}
		stream := NewNotificationStream(NotificationStreamConfig{
			BaseURL:        "ws://127.0.0.1:1",
			Credentials:    testCreds(),
			ReconnectDelay: 50 * time.Millisecond,
			OnStateChange:  recorder.record,
		})

		_ = stream.Start(context.Background())
		stream.Stop()

		settled := len(recorder.snapshot())
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, settled, len(recorder.snapshot()))
		assert.False(t, stream.Connected())
	})

	t.Run("log is capped", func(t *testing.T) {
		stream := NewNotificationStream(NotificationStreamConfig{
			BaseURL:     "ws://unused",
			Credentials: testCreds(),
		})
		for i := 0; i < notificationLogCap+50; i++ {
			stream.record(ConnectedNotification{})
		}
		assert.Len(t, stream.Notifications(), notificationLogCap)
	})
}
