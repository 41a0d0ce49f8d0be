package client

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// OptimisticTracker records locally-originated messages awaiting server
// confirmation, keyed by their client-generated identifier.
type OptimisticTracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewOptimisticTracker creates an empty tracker.
func NewOptimisticTracker() *OptimisticTracker {
	return &OptimisticTracker{pending: make(map[string]struct{})}
}

// NewLocalID generates a client-side message identifier of the form
// "optimistic-<unix-ms>-<random hex>".
func NewLocalID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to a nanosecond suffix
		return fmt.Sprintf("%s%d-%d", models.OptimisticIDPrefix,
			time.Now().UnixMilli(), time.Now().UnixNano()%1_000_000)
	}
	return fmt.Sprintf("%s%d-%s", models.OptimisticIDPrefix,
		time.Now().UnixMilli(), hex.EncodeToString(b))
}

// Track marks a local identifier as awaiting confirmation.
func (t *OptimisticTracker) Track(localID string) {
	t.mu.Lock()
	t.pending[localID] = struct{}{}
	t.mu.Unlock()
}

// Confirm removes a local identifier from the pending set, reporting
// whether it was tracked. A true result means the caller holds the
// confirmation for exactly this optimistic entry; supersession happens
// at most once per send.
func (t *OptimisticTracker) Confirm(localID string) bool {
	if localID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[localID]; !ok {
		return false
	}
	delete(t.pending, localID)
	return true
}

// Drop removes a local identifier without confirmation (failed send).
func (t *OptimisticTracker) Drop(localID string) {
	t.mu.Lock()
	delete(t.pending, localID)
	t.mu.Unlock()
}

// IsPending reports whether the identifier awaits confirmation.
func (t *OptimisticTracker) IsPending(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[localID]
	return ok
}

// Len returns the number of unconfirmed sends.
func (t *OptimisticTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Clear discards all tracking state.
func (t *OptimisticTracker) Clear() {
	t.mu.Lock()
	t.pending = make(map[string]struct{})
	t.mu.Unlock()
}
