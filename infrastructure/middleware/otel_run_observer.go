package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

var _ ports.RunObserver = (*OTelRunObserver)(nil)

// OTelRunObserver traces aggregation runs with OpenTelemetry and mirrors
// the run outcome into a MetricsCollector. The span lives in the context
// returned by RunStarted, so one observer serves concurrent runs.
type OTelRunObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewOTelRunObserver creates a run observer. metrics may be nil.
func NewOTelRunObserver(metrics ports.MetricsCollector) *OTelRunObserver {
	return &OTelRunObserver{
		tracer:  otel.Tracer("pricescout-engine"),
		metrics: metrics,
	}
}

// RunStarted starts the Engine.Aggregate span.
func (o *OTelRunObserver) RunStarted(ctx context.Context, runID string, query domain.Query) context.Context {
	ctx, _ = o.tracer.Start(ctx, "Engine.Aggregate", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("query.item", query.ItemName),
		attribute.Bool("query.has_caller", query.CallerKey != ""),
	))
	return ctx
}

// PhaseFinished records a phase summary as a span event.
func (o *OTelRunObserver) PhaseFinished(ctx context.Context, phase int, offers int, failures []domain.ProviderFailure) {
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.Int("phase", phase),
		attribute.Int("offers.count", offers),
		attribute.Int("failures.count", len(failures)),
	}
	for _, f := range failures {
		attrs = append(attrs, attribute.String("failure."+string(f.Provider), string(f.Kind)))
	}
	span.AddEvent("phase.finished", trace.WithAttributes(attrs...))
}

// RunFinished finalizes the span and records the run outcome.
func (o *OTelRunObserver) RunFinished(ctx context.Context, result domain.AggregationResult, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	status := RunStatus(result, err)
	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Int("offers.count", len(result.Candidates)),
		attribute.Bool("offers.differ", result.OffersDiffer),
	)
	if result.Cheapest != nil {
		span.SetAttributes(attribute.String("cheapest.provider", string(result.Cheapest.Provider)))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if o.metrics != nil {
		o.metrics.RecordCounter("runs_total", 1, map[string]string{"status": status})
		if result.Duration > 0 {
			o.metrics.RecordLatency("aggregate", result.Duration, map[string]string{"status": status})
		}
	}
}

// RunStatus maps a run outcome to its metric status label.
func RunStatus(result domain.AggregationResult, err error) string {
	switch {
	case errors.Is(err, domain.ErrBreakerOpen):
		return "breaker_open"
	case errors.Is(err, domain.ErrThrottled):
		return "throttled"
	case errors.Is(err, domain.ErrAllProvidersFailed):
		return "all_failed"
	case err != nil:
		return "error"
	case !result.Found():
		return "no_match"
	default:
		return "success"
	}
}
