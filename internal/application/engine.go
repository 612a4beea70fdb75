package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/infrastructure/resilience"
	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Breaker gates runs process-wide.
type Breaker interface {
	Allow() bool
	Record(success bool)
	GetState() resilience.CircuitBreakerState
}

// Throttler gates runs per caller.
type Throttler interface {
	Allow(callerKey string) bool
}

// Runner executes the provider phases of one run.
type Runner interface {
	Run(ctx context.Context, runID string, query domain.Query) (RunOutcome, error)
}

// Engine is the aggregation entry point: breaker, throttle, phased
// provider fan-out, then selection.
type Engine struct {
	breaker  Breaker
	throttle Throttler
	runner   Runner
	selector *Selector
	observer ports.RunObserver
	metrics  ports.MetricsCollector
	logger   log.FieldLogger
	newRunID func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRunObserver installs a lifecycle observer.
func WithRunObserver(o ports.RunObserver) EngineOption { return func(e *Engine) { e.observer = o } }

// WithEngineMetrics installs a metrics collector.
func WithEngineMetrics(m ports.MetricsCollector) EngineOption { return func(e *Engine) { e.metrics = m } }

// WithEngineLogger overrides the logger.
func WithEngineLogger(l log.FieldLogger) EngineOption { return func(e *Engine) { e.logger = l } }

// WithRunIDGenerator overrides run ID generation.
func WithRunIDGenerator(f func() string) EngineOption { return func(e *Engine) { e.newRunID = f } }

// NewEngine wires an engine. breaker and throttle may be nil to disable them.
func NewEngine(breaker Breaker, throttle Throttler, runner Runner, selector *Selector, opts ...EngineOption) *Engine {
	e := &Engine{
		breaker:  breaker,
		throttle: throttle,
		runner:   runner,
		selector: selector,
		logger:   log.StandardLogger(),
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	return e
}

// Aggregate runs one aggregation for query. It returns domain.ErrBreakerOpen
// or domain.ErrThrottled without contacting any provider, and an
// *domain.AllProvidersFailedError when no provider answered. A run where
// nothing matched is not an error.
func (e *Engine) Aggregate(ctx context.Context, query domain.Query) (domain.AggregationResult, error) {
	if query.ItemName == "" {
		return domain.AggregationResult{}, domain.ErrEmptyQuery
	}

	start := time.Now()
	runID := e.newRunID()
	logger := e.logger.WithFields(log.Fields{
		"run_id": runID,
		"caller": query.CallerKey,
		"item":   query.ItemName,
	})
	ctx = e.observer.RunStarted(ctx, runID, query)

	finish := func(result domain.AggregationResult, err error) (domain.AggregationResult, error) {
		result.RunID = runID
		result.Duration = time.Since(start)
		e.observer.RunFinished(ctx, result, err)
		return result, err
	}

	if e.breaker != nil && !e.breaker.Allow() {
		logger.WithField("event", "breaker_rejected").Warn("Circuit breaker open; run rejected")
		return finish(domain.AggregationResult{}, domain.ErrBreakerOpen)
	}
	if e.throttle != nil && !e.throttle.Allow(query.CallerKey) {
		logger.WithField("event", "throttled").Info("Caller throttled")
		return finish(domain.AggregationResult{}, domain.ErrThrottled)
	}

	outcome, runErr := e.runner.Run(ctx, runID, query)
	for _, p := range outcome.Phases {
		e.observer.PhaseFinished(ctx, p.Phase, p.Offers, p.Failures)
	}

	// Calls cut short by the caller say nothing about provider health.
	if runErr != nil && ctx.Err() != nil {
		logger.WithFields(log.Fields{
			"event": "run_cancelled",
			"calls": outcome.Calls,
		}).WithError(ctx.Err()).Warn("Run cancelled by caller")
		return finish(domain.AggregationResult{Failures: outcome.Failures}, ctx.Err())
	}
	e.record(logger, runErr == nil)

	if runErr != nil {
		logger.WithFields(log.Fields{
			"event": "run_finished",
			"calls": outcome.Calls,
		}).WithError(runErr).Error("All providers failed")
		result := domain.AggregationResult{Failures: outcome.Failures}
		return finish(result, runErr)
	}

	result := e.selector.Select(query.ItemName, outcome.Offers)
	result.Failures = outcome.Failures
	e.recordOffers(result)

	fields := log.Fields{
		"event":         "run_finished",
		"calls":         outcome.Calls,
		"failures":      len(outcome.Failures),
		"candidates":    len(result.Candidates),
		"offers_differ": result.OffersDiffer,
	}
	if result.Fastest != nil {
		fields["fastest"] = result.Fastest.Provider
	}
	if result.Cheapest != nil {
		fields["cheapest"] = result.Cheapest.Provider
	}
	logger.WithFields(fields).Info("Run finished")

	return finish(result, nil)
}

func (e *Engine) record(logger log.FieldLogger, success bool) {
	if e.breaker == nil {
		return
	}
	before := e.breaker.GetState()
	e.breaker.Record(success)
	if before == resilience.StateClosed && e.breaker.GetState() == resilience.StateOpen {
		logger.WithField("event", "breaker_opened").Error("Circuit breaker opened")
	}
}

func (e *Engine) recordOffers(result domain.AggregationResult) {
	if e.metrics == nil {
		return
	}
	threshold := e.selector.Threshold()
	for _, c := range result.Candidates {
		e.metrics.RecordHistogram("similarity_score", c.Similarity, nil)
		e.metrics.RecordCounter("offers_total", 1, map[string]string{"provider": string(c.Provider), "stage": "normalized"})
		if c.Similarity >= threshold {
			e.metrics.RecordCounter("offers_total", 1, map[string]string{"provider": string(c.Provider), "stage": "matched"})
		}
	}
}

type nopObserver struct{}

func (nopObserver) RunStarted(ctx context.Context, _ string, _ domain.Query) context.Context {
	return ctx
}

func (nopObserver) PhaseFinished(context.Context, int, int, []domain.ProviderFailure) {}

func (nopObserver) RunFinished(context.Context, domain.AggregationResult, error) {}
