package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/internal/ports"
)

// TestMemoryHistory_SaveAndRecent returns turns oldest first.
func TestMemoryHistory_SaveAndRecent(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()

	require.NoError(t, h.Save(ctx, "alice", "paracetamol", "reply 1"), "save should succeed")
	require.NoError(t, h.Save(ctx, "alice", "ibuprofeno", "reply 2"), "save should succeed")

	turns, err := h.Recent(ctx, "alice", 0)
	require.NoError(t, err, "recent should succeed")

	var got []string
	for _, turn := range turns {
		got = append(got, turn.Role+":"+turn.Content)
	}
	assert.Equal(t, []string{
		"user:paracetamol", "assistant:reply 1",
		"user:ibuprofeno", "assistant:reply 2",
	}, got, "turns should be ordered oldest first")
}

// TestMemoryHistory_TrimsToMaxTurns keeps only the newest turns.
func TestMemoryHistory_TrimsToMaxTurns(t *testing.T) {
	h := NewMemoryHistory(4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Save(ctx, "alice", fmt.Sprintf("item %d", i), fmt.Sprintf("reply %d", i)), "save should succeed")
	}

	turns, err := h.Recent(ctx, "alice", 100)
	require.NoError(t, err, "recent should succeed")
	require.Len(t, turns, 4, "history should be capped")
	assert.Equal(t, "item 3", turns[0].Content, "oldest kept turn")
	assert.Equal(t, "reply 4", turns[3].Content, "newest turn")
}

// TestMemoryHistory_Limit returns only the newest turns requested.
func TestMemoryHistory_Limit(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()
	require.NoError(t, h.Save(ctx, "alice", "a", "b"), "save should succeed")
	require.NoError(t, h.Save(ctx, "alice", "c", "d"), "save should succeed")

	turns, err := h.Recent(ctx, "alice", 1)
	require.NoError(t, err, "recent should succeed")
	require.Len(t, turns, 1, "limit should apply")
	assert.Equal(t, "d", turns[0].Content, "newest turn returned")
}

// TestMemoryHistory_CallersIsolated keeps callers apart.
func TestMemoryHistory_CallersIsolated(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()
	require.NoError(t, h.Save(ctx, "alice", "a", "b"), "save should succeed")

	turns, err := h.Recent(ctx, "bob", 10)
	require.NoError(t, err, "recent should succeed")
	assert.Empty(t, turns, "bob has no history")
	assert.Equal(t, 1, h.Callers(), "one caller stored")
}

// TestMemoryHistory_CancelledContext reports a store error.
func TestMemoryHistory_CancelledContext(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Save(ctx, "alice", "a", "b")
	var se *ports.StoreError
	require.ErrorAs(t, err, &se, "error should be a StoreError")
	assert.Equal(t, "save", se.Operation, "operation")
	assert.ErrorIs(t, err, context.Canceled, "cause should be preserved")
}
