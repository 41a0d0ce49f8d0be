package client

import (
	"sort"
	"sync"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// MessageStore is the ordered, deduplicated set of messages for one
// session; it is the single source of truth rendered by the UI.
//
// Invariant after every mutation: no two entries share an identifier and
// entries are sorted ascending by creation timestamp (stable, so arrival
// order breaks ties).
type MessageStore struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Merge returns the deduplicated, timestamp-ordered display set for the
// given authoritative and optimistic message sets. Confirmed messages win
// identifier collisions. Pure function; neither input is mutated.
func Merge(confirmed, pending []models.ChatMessage) []models.ChatMessage {
	merged := make([]models.ChatMessage, 0, len(confirmed)+len(pending))
	seen := make(map[string]struct{}, len(confirmed)+len(pending))

	for _, m := range confirmed {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range pending {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

// Insert adds or replaces a message by identifier and re-sorts.
func (s *MessageStore) Insert(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			s.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		s.messages = append(s.messages, msg)
	}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

// Remove deletes the message with the given identifier, reporting whether
// it was present. Order of the remaining messages is unchanged.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// SetMerged replaces the store contents with Merge(confirmed, pending).
// Used when an initial snapshot arrives: the snapshot is merged with the
// still-pending optimistic messages, never taken as a wholesale replacement.
func (s *MessageStore) SetMerged(confirmed, pending []models.ChatMessage) {
	merged := Merge(confirmed, pending)
	s.mu.Lock()
	s.messages = merged
	s.mu.Unlock()
}

// Messages returns a copy of the current display set.
func (s *MessageStore) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns the message with the given identifier, if present.
func (s *MessageStore) Get(id string) (models.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.ChatMessage{}, false
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear discards all messages.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
