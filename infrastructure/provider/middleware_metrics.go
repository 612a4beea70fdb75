package provider

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricProviderCalls   = "provider_calls_total"
	MetricProviderLatency = "provider_latency_seconds"
	MetricProviderOffers  = "provider_offers_total"
)

// Call status label values.
const (
	StatusSuccess   = "success"
	StatusEmpty     = "empty"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// metricsProvider records call counts, latency and offer volume.
type metricsProvider struct {
	next      ports.Provider
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports every search to
// collector. A nil collector disables the middleware.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	if collector == nil {
		return nil
	}
	return func(next ports.Provider) ports.Provider {
		return &metricsProvider{
			next:      next,
			collector: collector,
		}
	}
}

// Search forwards the call and records its outcome.
func (m *metricsProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	start := time.Now()
	offers, err := m.next.Search(ctx, query)

	labels := map[string]string{
		"provider": string(m.next.ID()),
		"status":   CallStatus(offers, err),
	}

	m.collector.RecordHistogram(MetricProviderLatency, time.Since(start).Seconds(), map[string]string{
		"provider": labels["provider"],
	})
	m.collector.RecordCounter(MetricProviderCalls, 1, labels)
	if err == nil && len(offers) > 0 {
		m.collector.RecordCounter(MetricProviderOffers, float64(len(offers)), map[string]string{
			"provider": labels["provider"],
			"stage":    "raw",
		})
	}

	return offers, err
}

// CallStatus maps a search outcome to its metric status label.
func CallStatus(offers []domain.RawOffer, err error) string {
	switch {
	case err == nil && len(offers) == 0:
		return StatusEmpty
	case err == nil:
		return StatusSuccess
	case IsTimeout(err):
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}

// ID returns the wrapped provider's identity.
func (m *metricsProvider) ID() domain.ProviderID { return m.next.ID() }

// Unwrap returns the wrapped provider.
func (m *metricsProvider) Unwrap() ports.Provider { return m.next }
