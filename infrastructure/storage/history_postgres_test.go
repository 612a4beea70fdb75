package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/internal/ports"
)

// TestNewPostgresHistory_InvalidDSN fails before connecting.
func TestNewPostgresHistory_InvalidDSN(t *testing.T) {
	_, err := NewPostgresHistory(context.Background(), "postgres://user@localhost:notaport/db", PostgresOptions{})
	require.Error(t, err, "invalid DSN should fail")

	var se *ports.StoreError
	require.ErrorAs(t, err, &se, "error should be a StoreError")
	assert.Equal(t, postgresStore, se.Store, "store name")
	assert.Equal(t, "parse_dsn", se.Operation, "operation")
}

// TestPostgresHistory_RoundTrip runs against a real database when
// PRICESCOUT_TEST_DSN is set.
func TestPostgresHistory_RoundTrip(t *testing.T) {
	dsn := os.Getenv("PRICESCOUT_TEST_DSN")
	if dsn == "" {
		t.Skip("PRICESCOUT_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, err := NewPostgresHistory(ctx, dsn, PostgresOptions{MaxTurns: 4})
	require.NoError(t, err, "connection should succeed")
	defer h.Close()

	caller := "test-" + uuid.NewString()
	for _, item := range []string{"a", "b", "c"} {
		require.NoError(t, h.Save(ctx, caller, item, "reply "+item), "save should succeed")
	}

	turns, err := h.Recent(ctx, caller, 10)
	require.NoError(t, err, "recent should succeed")
	require.Len(t, turns, 4, "history should be trimmed to max turns")
	assert.Equal(t, "b", turns[0].Content, "oldest kept turn")
	assert.Equal(t, RoleAssistant, turns[3].Role, "newest turn is the reply")
	assert.Equal(t, "reply c", turns[3].Content, "newest reply")
}
