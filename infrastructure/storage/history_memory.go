package storage

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-pricescout/internal/ports"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var _ ports.HistoryStore = (*MemoryHistory)(nil)

// MemoryHistory keeps the most recent turns of every caller in process
// memory. It is safe for concurrent use.
type MemoryHistory struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]ports.Turn
	now      func() time.Time
}

// NewMemoryHistory creates a store keeping at most maxTurns turns per
// caller. Values below 2 keep a single exchange.
func NewMemoryHistory(maxTurns int) *MemoryHistory {
	if maxTurns < 2 {
		maxTurns = 2
	}
	return &MemoryHistory{
		maxTurns: maxTurns,
		turns:    make(map[string][]ports.Turn),
		now:      time.Now,
	}
}

// Save appends the caller's item and the reply it received.
func (h *MemoryHistory) Save(ctx context.Context, callerID, itemName, reply string) error {
	if err := ctx.Err(); err != nil {
		return ports.NewStoreError("memory_history", "save", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	turns := append(h.turns[callerID],
		ports.Turn{Role: RoleUser, Content: itemName, At: now},
		ports.Turn{Role: RoleAssistant, Content: reply, At: now},
	)
	if over := len(turns) - h.maxTurns; over > 0 {
		turns = append([]ports.Turn(nil), turns[over:]...)
	}
	h.turns[callerID] = turns
	return nil
}

// Recent returns up to limit most recent turns, oldest first.
func (h *MemoryHistory) Recent(ctx context.Context, callerID string, limit int) ([]ports.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewStoreError("memory_history", "recent", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.turns[callerID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]ports.Turn(nil), turns...), nil
}

// Callers returns the number of callers with stored history.
func (h *MemoryHistory) Callers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
