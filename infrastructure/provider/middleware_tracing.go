package provider

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// tracedProvider records one span per provider search.
type tracedProvider struct {
	next   ports.Provider
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that wraps every search in an
// OpenTelemetry span named "provider.search". Spans use the global tracer
// provider, which is a no-op until the process installs one.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next ports.Provider) ports.Provider {
		return &tracedProvider{next: next, tracer: tracer}
	}
}

// Search executes the search within a span carrying the provider id,
// query length and offer count.
func (t *tracedProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	ctx, span := t.tracer.Start(ctx, "provider.search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.id", string(t.next.ID())),
			attribute.Int("provider.query.length", len(query)),
		),
	)
	defer span.End()

	offers, err := t.next.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		if IsTimeout(err) {
			span.AddEvent("provider.timeout")
		}
		span.SetStatus(codes.Error, err.Error())
		return offers, err
	}

	span.SetAttributes(attribute.Int("provider.offers", len(offers)))
	span.SetStatus(codes.Ok, "")
	return offers, nil
}

// ID returns the wrapped provider's identity.
func (t *tracedProvider) ID() domain.ProviderID { return t.next.ID() }

// Unwrap returns the wrapped provider.
func (t *tracedProvider) Unwrap() ports.Provider { return t.next }
