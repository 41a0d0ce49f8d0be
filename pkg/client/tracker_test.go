package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

func TestNewLocalID(t *testing.T) {
	t.Run("carries optimistic prefix", func(t *testing.T) {
		id := NewLocalID()
		assert.True(t, strings.HasPrefix(id, models.OptimisticIDPrefix))
	})

	t.Run("unique across calls", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewLocalID()
			require.False(t, seen[id], "duplicate local id %s", id)
			seen[id] = true
		}
	})
}

func TestOptimisticTracker(t *testing.T) {
	t.Run("confirm removes exactly once", func(t *testing.T) {
		tr := NewOptimisticTracker()
		tr.Track("optimistic-1")

		assert.True(t, tr.Confirm("optimistic-1"))
		assert.False(t, tr.Confirm("optimistic-1"))
		assert.Equal(t, 0, tr.Len())
	})

	t.Run("confirm of empty id is never true", func(t *testing.T) {
		tr := NewOptimisticTracker()
		tr.Track("optimistic-1")
		// Messages from other participants carry no local id.
		assert.False(t, tr.Confirm(""))
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("confirm of untracked id", func(t *testing.T) {
		tr := NewOptimisticTracker()
		assert.False(t, tr.Confirm("optimistic-unknown"))
	})

	t.Run("drop discards without confirmation", func(t *testing.T) {
		tr := NewOptimisticTracker()
		tr.Track("optimistic-1")
		tr.Drop("optimistic-1")

		assert.False(t, tr.IsPending("optimistic-1"))
		assert.False(t, tr.Confirm("optimistic-1"))
	})

	t.Run("is pending reflects tracking", func(t *testing.T) {
		tr := NewOptimisticTracker()
		assert.False(t, tr.IsPending("optimistic-1"))
		tr.Track("optimistic-1")
		assert.True(t, tr.IsPending("optimistic-1"))
	})

	t.Run("clear discards all", func(t *testing.T) {
		tr := NewOptimisticTracker()
		tr.Track("optimistic-1")
		tr.Track("optimistic-2")
		tr.Clear()
		assert.Equal(t, 0, tr.Len())
	})
}
