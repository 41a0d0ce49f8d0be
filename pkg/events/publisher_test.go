package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(NewMessagePayload{
			Type:      EventTypeNewMessage,
			SessionID: "abc-123",
			Message:   models.ChatMessage{ID: "m1", Content: "some content"},
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, EventTypeNewMessage)
		assert.Contains(t, result, "abc-123")
		assert.NotContains(t, result, "truncated")
	})

	t.Run("truncates oversized payload", func(t *testing.T) {
		payload, _ := json.Marshal(NewMessagePayload{
			Type:      EventTypeNewMessage,
			SessionID: "abc-123",
			Message:   models.ChatMessage{ID: "m1", Content: strings.Repeat("a", 8000)},
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, "truncated")
		assert.Less(t, len(result), 8000)
	})

	t.Run("truncated payload preserves routing fields", func(t *testing.T) {
		payload, _ := json.Marshal(NewMessagePayload{
			Type:      EventTypeNewMessage,
			SessionID: "sess-789",
			Message:   models.ChatMessage{ID: "m1", Content: strings.Repeat("x", 8000)},
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)

		assert.Contains(t, result, EventTypeNewMessage)
		assert.Contains(t, result, "sess-789")
		assert.Contains(t, result, `"truncated":true`)
		assert.NotContains(t, result, "xxxx")
	})

	t.Run("boundary: payload just under limit is not truncated", func(t *testing.T) {
		// Measure the fixed overhead first, then size the content so the
		// marshaled payload lands just under 7900 bytes. The 20-byte margin
		// keeps the test from flipping if the payload grows a field.
		base, _ := json.Marshal(NewMessagePayload{Type: "t"})
		contentSize := 7900 - len(base) - 20
		payload, _ := json.Marshal(NewMessagePayload{
			Type:    "t",
			Message: models.ChatMessage{Content: strings.Repeat("b", contentSize)},
		})
		require.LessOrEqual(t, len(payload), 7900, "test payload should be under limit")

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("empty JSON object", func(t *testing.T) {
		result, err := truncateIfNeeded("{}")
		require.NoError(t, err)
		assert.Equal(t, "{}", result)
	})
}

func TestNewEventPublisher(t *testing.T) {
	publisher := NewEventPublisher(nil)
	assert.NotNil(t, publisher)
	assert.Nil(t, publisher.db)
}

func TestNewMessagePayload_JSON(t *testing.T) {
	created := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	payload := NewMessagePayload{
		Type:      EventTypeNewMessage,
		SessionID: "sess-123",
		Message: models.ChatMessage{
			ID:         "msg-456",
			LocalID:    "optimistic-1700000000000-ab12",
			SessionID:  "sess-123",
			SenderID:   "user-1",
			SenderName: "Pat",
			SenderKind: models.SenderUser,
			Content:    "hello",
			CreatedAt:  created,
		},
		Timestamp: "2026-08-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded NewMessagePayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeNewMessage, decoded.Type)
	assert.Equal(t, "sess-123", decoded.SessionID)
	assert.Equal(t, "msg-456", decoded.Message.ID)
	assert.Equal(t, "optimistic-1700000000000-ab12", decoded.Message.LocalID)
	assert.Equal(t, models.SenderUser, decoded.Message.SenderKind)
	assert.True(t, created.Equal(decoded.Message.CreatedAt))
}

func TestStatusUpdatePayload_JSON(t *testing.T) {
	payload := StatusUpdatePayload{
		Type:      EventTypeStatusUpdate,
		SessionID: "sess-123",
		Status:    models.StatusResolved,
		Timestamp: "2026-08-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded StatusUpdatePayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeStatusUpdate, decoded.Type)
	assert.Equal(t, "sess-123", decoded.SessionID)
	assert.Equal(t, models.StatusResolved, decoded.Status)
	assert.Equal(t, "2026-08-10T12:00:00Z", decoded.Timestamp)
}

func TestInitialPayload_JSON(t *testing.T) {
	payload := InitialPayload{
		Type:      EventTypeInitial,
		SessionID: "sess-123",
		Session:   &models.ChatSession{ID: "sess-123", Status: models.StatusActive},
		Messages: []models.ChatMessage{
			{ID: "m1", Content: "first"},
			{ID: "m2", Content: "second"},
		},
		Timestamp: "2026-08-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded InitialPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.NotNil(t, decoded.Session)
	assert.Equal(t, models.StatusActive, decoded.Session.Status)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "m1", decoded.Messages[0].ID)
	assert.Equal(t, "m2", decoded.Messages[1].ID)
}

func TestInitialPayload_EmptyMessages(t *testing.T) {
	payload := InitialPayload{
		Type:      EventTypeInitial,
		SessionID: "sess-123",
		Session:   &models.ChatSession{ID: "sess-123", Status: models.StatusWaiting},
		Messages:  []models.ChatMessage{},
		Timestamp: "2026-08-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	// A fresh session serializes an empty array, not null.
	assert.Contains(t, string(data), `"messages":[]`)
}
