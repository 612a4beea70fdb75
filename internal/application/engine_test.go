package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/infrastructure/provider"
	"github.com/ahrav/go-pricescout/infrastructure/resilience"
	"github.com/ahrav/go-pricescout/internal/domain"
)

// fakeRunner returns a canned outcome and counts calls.
type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	outcome RunOutcome
	err     error
	runIDs  []string
}

func (f *fakeRunner) Run(_ context.Context, runID string, _ domain.Query) (RunOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.runIDs = append(f.runIDs, runID)
	return f.outcome, f.err
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func allFailed() error {
	return &domain.AllProvidersFailedError{Failures: []domain.ProviderFailure{
		{Provider: "a", Phase: 1, Kind: domain.FailureTimeout, Err: context.DeadlineExceeded},
	}}
}

// recordingObserver captures run lifecycle callbacks.
type recordingObserver struct {
	started  []string
	phases   []int
	finished []error
}

func (r *recordingObserver) RunStarted(ctx context.Context, runID string, _ domain.Query) context.Context {
	r.started = append(r.started, runID)
	return ctx
}

func (r *recordingObserver) PhaseFinished(_ context.Context, phase int, _ int, _ []domain.ProviderFailure) {
	r.phases = append(r.phases, phase)
}

func (r *recordingObserver) RunFinished(_ context.Context, _ domain.AggregationResult, err error) {
	r.finished = append(r.finished, err)
}

// metricsRecorder sums counters and collects histogram samples by name.
type metricsRecorder struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{counters: map[string]float64{}, histograms: map[string][]float64{}}
}

func (m *metricsRecorder) RecordLatency(string, time.Duration, map[string]string) {}
func (m *metricsRecorder) RecordGauge(string, float64, map[string]string)         {}

func (m *metricsRecorder) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric
	if stage := labels["stage"]; stage != "" {
		key += ":" + stage
	}
	m.counters[key] += value
}

func (m *metricsRecorder) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], value)
}

func newTestEngine(breaker Breaker, throttle Throttler, runner Runner, opts ...EngineOption) *Engine {
	logger, _ := test.NewNullLogger()
	opts = append([]EngineOption{WithEngineLogger(logger)}, opts...)
	return NewEngine(breaker, throttle, runner, NewSelector(fixedScorer(0.9), 0.5, "sufarmed"), opts...)
}

// TestEngine_EmptyQuery rejects an empty item before any gate.
func TestEngine_EmptyQuery(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(nil, nil, runner)

	_, err := e.Aggregate(context.Background(), domain.Query{})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery, "empty query should be rejected")
	assert.Zero(t, runner.Calls(), "runner should not be called")
}

// TestEngine_Success selects offers and stamps the run.
func TestEngine_Success(t *testing.T) {
	runner := &fakeRunner{outcome: RunOutcome{
		Offers: []domain.RawOffer{
			raw("sufarmed", "PARACETAMOL 500MG", "$181.82", "10"),
			raw("fanasa", "PARACETAMOL 500MG", "$120.00", "0"),
		},
		Failures: []domain.ProviderFailure{{Provider: "nadro", Phase: 2, Kind: domain.FailureError, Err: errors.New("x")}},
		Phases:   []PhaseSummary{{Phase: 1, Calls: 2, Offers: 2}, {Phase: 2, Calls: 1}},
		Calls:    3,
	}}
	observer := &recordingObserver{}
	metrics := newMetricsRecorder()
	e := newTestEngine(nil, nil, runner,
		WithRunIDGenerator(func() string { return "run-42" }),
		WithRunObserver(observer),
		WithEngineMetrics(metrics),
	)

	result, err := e.Aggregate(context.Background(), mustQuery(t, "paracetamol 500mg"))
	require.NoError(t, err, "run should succeed")

	assert.Equal(t, "run-42", result.RunID, "run ID should be stamped")
	assert.Equal(t, []string{"run-42"}, runner.runIDs, "runner should see the same run ID")
	require.NotNil(t, result.Fastest, "fastest should be set")
	require.NotNil(t, result.Cheapest, "cheapest should be set")
	assert.Equal(t, domain.ProviderID("sufarmed"), result.Fastest.Provider, "fastest provider")
	assert.Equal(t, domain.ProviderID("fanasa"), result.Cheapest.Provider, "cheapest provider")
	assert.True(t, result.OffersDiffer, "offers differ")
	assert.Len(t, result.Failures, 1, "failures carried on the result")

	assert.Equal(t, []string{"run-42"}, observer.started, "observer saw the run start")
	assert.Equal(t, []int{1, 2}, observer.phases, "observer saw both phases")
	assert.Equal(t, []error{nil}, observer.finished, "observer saw a successful finish")

	assert.Equal(t, 2.0, metrics.counters["offers_total:normalized"], "normalized offers counted")
	assert.Equal(t, 2.0, metrics.counters["offers_total:matched"], "matched offers counted")
	assert.Len(t, metrics.histograms["similarity_score"], 2, "similarity observed per candidate")
}

// TestEngine_BreakerOpenSkipsProviders verifies an open breaker rejects a
// run without contacting any provider.
func TestEngine_BreakerOpenSkipsProviders(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(1, time.Hour)
	breaker.Record(false)
	runner := &fakeRunner{}
	observer := &recordingObserver{}
	e := newTestEngine(breaker, nil, runner, WithRunObserver(observer))

	result, err := e.Aggregate(context.Background(), mustQuery(t, "x"))
	assert.ErrorIs(t, err, domain.ErrBreakerOpen, "breaker should reject")
	assert.True(t, domain.IsUnavailable(err), "breaker rejection is an unavailability")
	assert.False(t, result.Found(), "no offers")
	assert.Zero(t, runner.Calls(), "no provider should be called")
	assert.Equal(t, []error{domain.ErrBreakerOpen}, observer.finished, "observer saw the rejection")
}

// TestEngine_ThrottlePerCaller rejects a second run from the same caller
// only.
func TestEngine_ThrottlePerCaller(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(nil, resilience.NewThrottle(time.Hour), runner)

	q1, err := domain.NewQuery("x", "alice")
	require.NoError(t, err, "query should be valid")
	q2, err := domain.NewQuery("x", "bob")
	require.NoError(t, err, "query should be valid")

	_, err = e.Aggregate(context.Background(), q1)
	require.NoError(t, err, "first run should pass")
	_, err = e.Aggregate(context.Background(), q1)
	assert.ErrorIs(t, err, domain.ErrThrottled, "second run from same caller should be throttled")
	_, err = e.Aggregate(context.Background(), q2)
	assert.NoError(t, err, "another caller is not throttled")
	assert.Equal(t, 2, runner.Calls(), "throttled run should not reach providers")
}

// TestEngine_BreakerOpensAfterConsecutiveFailures counts only all-failed
// runs and logs the transition once.
func TestEngine_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(3, time.Hour)
	runner := &fakeRunner{err: allFailed()}
	logger, logs := test.NewNullLogger()
	e := NewEngine(breaker, nil, runner, NewSelector(fixedScorer(0.9), 0.5, "sufarmed"), WithEngineLogger(logger))

	for i := 0; i < 3; i++ {
		_, err := e.Aggregate(context.Background(), mustQuery(t, "x"))
		assert.ErrorIs(t, err, domain.ErrAllProvidersFailed, "run %d should fail", i)
	}
	assert.Equal(t, resilience.StateOpen, breaker.GetState(), "breaker should open after the threshold")

	_, err := e.Aggregate(context.Background(), mustQuery(t, "x"))
	assert.ErrorIs(t, err, domain.ErrBreakerOpen, "next run should be rejected")
	assert.Equal(t, 3, runner.Calls(), "rejected run should not reach providers")

	opened := 0
	for _, entry := range logs.AllEntries() {
		if entry.Data["event"] == "breaker_opened" {
			opened++
		}
	}
	assert.Equal(t, 1, opened, "breaker opening should be logged once")
}

// TestEngine_SuccessDecrementsFailures keeps the breaker closed when
// failures are interleaved with successes.
func TestEngine_SuccessDecrementsFailures(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(2, time.Hour)
	runner := &fakeRunner{}
	e := newTestEngine(breaker, nil, runner)

	for i := 0; i < 4; i++ {
		runner.mu.Lock()
		if i%2 == 0 {
			runner.err = allFailed()
		} else {
			runner.err = nil
		}
		runner.mu.Unlock()
		_, _ = e.Aggregate(context.Background(), mustQuery(t, "x"))
	}
	assert.Equal(t, resilience.StateClosed, breaker.GetState(), "alternating outcomes should keep the breaker closed")
}

// TestEngine_NoMatchIsNotAFailure keeps the breaker closed when providers
// answered but nothing matched.
func TestEngine_NoMatchIsNotAFailure(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(1, time.Hour)
	runner := &fakeRunner{outcome: RunOutcome{Calls: 2}}
	e := newTestEngine(breaker, nil, runner)

	result, err := e.Aggregate(context.Background(), mustQuery(t, "x"))
	require.NoError(t, err, "an empty run is not an error")
	assert.False(t, result.Found(), "nothing found")
	assert.Equal(t, resilience.StateClosed, breaker.GetState(), "breaker should stay closed")
}

// TestEngine_CallerCancellationNotRecorded keeps the breaker closed when
// every provider call fails only because the caller gave up.
func TestEngine_CallerCancellationNotRecorded(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(3, 5*time.Minute)
	slow := provider.NewMockProvider("sufarmed", raw("sufarmed", "PARACETAMOL 500MG", "$10.00", "1"))
	slow.ResponseDelay = 2 * time.Second
	orch, err := NewOrchestrator(
		[]Registration{registration(slow, 1, time.Minute)},
		WithCleanupTimeout(time.Second),
		WithOrchestratorLogger(quietLogger()),
	)
	require.NoError(t, err, "orchestrator should build")

	logger, logs := test.NewNullLogger()
	e := NewEngine(breaker, nil, orch, NewSelector(fixedScorer(0.9), 0.5, "sufarmed"), WithEngineLogger(logger))

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := e.Aggregate(ctx, mustQuery(t, "paracetamol 500mg"))
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded, "run %d should report the caller deadline", i)
		assert.NotErrorIs(t, err, domain.ErrAllProvidersFailed, "run %d is not a provider outage", i)
	}

	assert.Equal(t, resilience.StateClosed, breaker.GetState(), "caller deadlines should not open the breaker")
	assert.Zero(t, breaker.Snapshot().ConsecutiveFailures, "caller deadlines should not count as failures")
	assert.True(t, breaker.Allow(), "next caller should be admitted")

	cancelled := 0
	for _, entry := range logs.AllEntries() {
		if entry.Data["event"] == "run_cancelled" {
			cancelled++
		}
	}
	assert.Equal(t, 3, cancelled, "each cancelled run should be logged")
}

// TestEngine_CancelledBeforeRun returns the context error for an
// already cancelled caller and leaves the breaker untouched.
func TestEngine_CancelledBeforeRun(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(1, time.Hour)
	runner := &fakeRunner{err: allFailed()}
	e := newTestEngine(breaker, nil, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Aggregate(ctx, mustQuery(t, "x"))

	assert.ErrorIs(t, err, context.Canceled, "cancellation should surface to the caller")
	assert.Equal(t, resilience.StateClosed, breaker.GetState(), "cancelled run should not be recorded")
}
