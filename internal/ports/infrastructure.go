package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-pricescout/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/ahrav/go-pricescout/internal/ports CatalogLookup,HistoryStore

// Provider is the capability every external offer source exposes.
// Implementations may be HTTP clients, browser drivers or static tables;
// the engine only depends on this contract.
type Provider interface {
	// ID returns the provider identity used for scheduling, selection
	// and metrics.
	ID() domain.ProviderID

	// Search returns zero or more raw candidate records for a
	// provider-normalized query.
	// Implementations must stop work promptly when ctx is done.
	Search(ctx context.Context, query string) ([]domain.RawOffer, error)
}

// Releaser is implemented by providers that hold stateful resources
// (sessions, pooled connections, background handles) that should be
// reclaimed between phases.
type Releaser interface {
	Release(ctx context.Context) error
}

// CleanupHook reclaims provider-side resources between phases.
// Errors are reported for logging only; they never fail a run.
type CleanupHook interface {
	Cleanup(ctx context.Context, phase int) error
}

// CleanupFunc adapts an ordinary function to CleanupHook.
type CleanupFunc func(ctx context.Context, phase int) error

// Cleanup calls f(ctx, phase).
func (f CleanupFunc) Cleanup(ctx context.Context, phase int) error { return f(ctx, phase) }

// CatalogLookup is the internal catalog fast path consulted before any
// provider is contacted.
type CatalogLookup interface {
	// Lookup returns the best catalog match at or above threshold, or nil.
	Lookup(ctx context.Context, itemName string, threshold float64) (*domain.NormalizedOffer, error)
}

// Turn is one message in a caller's conversation history.
type Turn struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
	// At is when the turn was stored.
	At time.Time
}

// HistoryStore persists caller/assistant exchanges for auditing.
// The engine never depends on its availability.
type HistoryStore interface {
	// Save appends the item the caller asked for and the reply it received.
	Save(ctx context.Context, callerID, itemName, reply string) error

	// Recent returns up to limit most recent turns, oldest first.
	Recent(ctx context.Context, callerID string, limit int) ([]Turn, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like provider calls, runs, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like breaker state or tracked
	// callers.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like similarity scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// RunObserver receives lifecycle callbacks for one aggregation run.
// RunStarted returns the context the rest of the run executes under, so
// observers can attach spans or correlation values.
type RunObserver interface {
	RunStarted(ctx context.Context, runID string, query domain.Query) context.Context
	PhaseFinished(ctx context.Context, phase int, offers int, failures []domain.ProviderFailure)
	RunFinished(ctx context.Context, result domain.AggregationResult, err error)
}
