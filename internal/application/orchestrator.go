package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-pricescout/infrastructure/provider"
	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Registration binds a provider to its scheduling descriptor.
type Registration struct {
	Descriptor domain.ProviderDescriptor
	Provider   ports.Provider
}

// PhaseSummary describes one completed phase of a run.
type PhaseSummary struct {
	Phase    int
	Calls    int
	Offers   int
	Failures []domain.ProviderFailure
	Duration time.Duration
}

// RunOutcome is everything the orchestrator collected for one run.
type RunOutcome struct {
	// Offers holds the raw offers of every successful call, attributed to
	// the provider that returned them.
	Offers   []domain.RawOffer
	Failures []domain.ProviderFailure
	Phases   []PhaseSummary
	Calls    int
}

type phase struct {
	number  int
	entries []Registration
}

// Orchestrator runs providers in declared phases. Providers within a phase
// run concurrently, each bounded by its own timeout; phases run strictly in
// ascending order with a cleanup barrier between them.
type Orchestrator struct {
	phases         []phase
	cleanup        ports.CleanupHook
	cleanupTimeout time.Duration
	phaseDelay     time.Duration
	logger         log.FieldLogger
	tracer         trace.Tracer
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCleanupHook sets the hook run after every phase.
func WithCleanupHook(h ports.CleanupHook) OrchestratorOption {
	return func(o *Orchestrator) { o.cleanup = h }
}

// WithCleanupTimeout bounds each cleanup invocation.
func WithCleanupTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.cleanupTimeout = d }
}

// WithPhaseDelay pauses after cleanup before the next phase starts.
func WithPhaseDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.phaseDelay = d }
}

// WithOrchestratorLogger overrides the logger.
func WithOrchestratorLogger(l log.FieldLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator validates the registrations and groups them by phase.
// Every provider is wrapped with its descriptor's hard timeout.
func NewOrchestrator(regs []Registration, opts ...OrchestratorOption) (*Orchestrator, error) {
	if len(regs) == 0 {
		return nil, fmt.Errorf("%w: no providers registered", domain.ErrInvalidConfiguration)
	}

	byPhase := make(map[int][]Registration)
	seen := make(map[domain.ProviderID]struct{}, len(regs))
	for _, r := range regs {
		if r.Provider == nil {
			return nil, fmt.Errorf("%w: provider %s is nil", domain.ErrInvalidConfiguration, r.Descriptor.ID)
		}
		if r.Provider.ID() != r.Descriptor.ID {
			return nil, fmt.Errorf("%w: provider %s registered under descriptor %s",
				domain.ErrInvalidConfiguration, r.Provider.ID(), r.Descriptor.ID)
		}
		if r.Descriptor.Phase < 1 {
			return nil, fmt.Errorf("%w: provider %s has phase %d", domain.ErrInvalidConfiguration, r.Descriptor.ID, r.Descriptor.Phase)
		}
		if _, dup := seen[r.Descriptor.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %s", domain.ErrInvalidConfiguration, r.Descriptor.ID)
		}
		seen[r.Descriptor.ID] = struct{}{}

		r.Provider = provider.TimeoutMiddleware(r.Descriptor.Timeout)(r.Provider)
		byPhase[r.Descriptor.Phase] = append(byPhase[r.Descriptor.Phase], r)
	}

	o := &Orchestrator{
		cleanupTimeout: DefaultCleanupTimeout,
		logger:         log.StandardLogger(),
		tracer:         otel.Tracer("pricescout-orchestrator"),
	}
	for n, entries := range byPhase {
		o.phases = append(o.phases, phase{number: n, entries: entries})
	}
	sort.Slice(o.phases, func(i, j int) bool { return o.phases[i].number < o.phases[j].number })

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Phases returns the phase numbers in execution order.
func (o *Orchestrator) Phases() []int {
	out := make([]int, len(o.phases))
	for i, p := range o.phases {
		out[i] = p.number
	}
	return out
}

// Run executes every phase for query. It returns an
// *domain.AllProvidersFailedError only when every call of every phase
// failed; any other mix of outcomes is a successful run.
func (o *Orchestrator) Run(ctx context.Context, runID string, query domain.Query) (RunOutcome, error) {
	var out RunOutcome
	logger := o.logger.WithFields(log.Fields{"run_id": runID})

	for i, p := range o.phases {
		summary, offers := o.runPhase(ctx, logger, p, query)
		out.Offers = append(out.Offers, offers...)
		out.Failures = append(out.Failures, summary.Failures...)
		out.Phases = append(out.Phases, summary)
		out.Calls += summary.Calls

		o.runCleanup(ctx, logger, p.number)

		if o.phaseDelay > 0 && i < len(o.phases)-1 {
			wait(ctx, o.phaseDelay)
		}
	}

	if out.Calls > 0 && len(out.Failures) == out.Calls {
		return out, &domain.AllProvidersFailedError{Failures: out.Failures}
	}
	return out, nil
}

type callResult struct {
	id       domain.ProviderID
	offers   []domain.RawOffer
	err      error
	duration time.Duration
}

func (o *Orchestrator) runPhase(ctx context.Context, logger log.FieldLogger, p phase, query domain.Query) (PhaseSummary, []domain.RawOffer) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Phase", trace.WithAttributes(
		attribute.Int("phase", p.number),
		attribute.Int("providers.count", len(p.entries)),
	))
	defer span.End()

	logger.WithFields(log.Fields{
		"event":     "phase_started",
		"phase":     p.number,
		"providers": len(p.entries),
	}).Info("Phase started")

	// Buffered to the phase width so no sender ever blocks.
	results := make(chan callResult, len(p.entries))
	var wg sync.WaitGroup
	for _, r := range p.entries {
		wg.Add(1)
		go func(r Registration) {
			defer wg.Done()
			results <- o.call(ctx, r, query)
		}(r)
	}
	wg.Wait()
	close(results)

	summary := PhaseSummary{Phase: p.number, Calls: len(p.entries)}
	var offers []domain.RawOffer
	for res := range results {
		fields := log.Fields{
			"phase":       p.number,
			"provider":    res.id,
			"duration_ms": res.duration.Milliseconds(),
		}
		if res.err != nil {
			failure := domain.ProviderFailure{Provider: res.id, Phase: p.number, Kind: failureKind(res.err), Err: res.err}
			summary.Failures = append(summary.Failures, failure)
			fields["event"] = "provider_failed"
			fields["kind"] = failure.Kind
			var classified interface{ IsRetryable() bool }
			if errors.As(res.err, &classified) {
				fields["retryable"] = classified.IsRetryable()
			}
			logger.WithFields(fields).WithError(res.err).Warn("Provider call failed")
			continue
		}
		for _, offer := range res.offers {
			offer.Provider = res.id
			offers = append(offers, offer)
		}
		fields["event"] = "provider_succeeded"
		fields["offers"] = len(res.offers)
		logger.WithFields(fields).Debug("Provider call succeeded")
	}
	summary.Offers = len(offers)
	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("offers.count", summary.Offers),
		attribute.Int("failures.count", len(summary.Failures)),
	)
	if len(summary.Failures) == summary.Calls {
		span.SetStatus(codes.Error, "every provider in phase failed")
	}

	logger.WithFields(log.Fields{
		"event":       "phase_finished",
		"phase":       p.number,
		"offers":      summary.Offers,
		"failures":    len(summary.Failures),
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("Phase finished")

	return summary, offers
}

// call performs one provider search. Panics outside the provider, such as
// in a query adapter, are contained here.
func (o *Orchestrator) call(ctx context.Context, r Registration, query domain.Query) callResult {
	res := callResult{id: r.Descriptor.ID}
	start := time.Now()

	var pc panics.Catcher
	pc.Try(func() {
		q := r.Descriptor.Normalize(query.ItemName)
		res.offers, res.err = r.Provider.Search(ctx, q)
	})
	if rec := pc.Recovered(); rec != nil {
		res.offers = nil
		res.err = &provider.PanicError{Provider: r.Descriptor.ID, Value: rec.Value, Stack: rec.Stack}
	}
	res.duration = time.Since(start)
	return res
}

// runCleanup invokes the cleanup hook with its own deadline. It is detached
// from run cancellation and never fails the run.
func (o *Orchestrator) runCleanup(ctx context.Context, logger log.FieldLogger, phaseNumber int) {
	if o.cleanup == nil {
		return
	}

	cctx := context.WithoutCancel(ctx)
	if o.cleanupTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(cctx, o.cleanupTimeout)
		defer cancel()
	}

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = o.cleanup.Cleanup(cctx, phaseNumber) })
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("cleanup panicked: %v", rec.Value)
	}
	if err != nil {
		logger.WithFields(log.Fields{
			"event": "cleanup_failed",
			"phase": phaseNumber,
		}).WithError(err).Warn("Cleanup failed")
	}
}

func failureKind(err error) domain.FailureKind {
	var pe *provider.PanicError
	switch {
	case errors.As(err, &pe):
		return domain.FailurePanic
	case provider.IsTimeout(err):
		return domain.FailureTimeout
	default:
		return domain.FailureError
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
