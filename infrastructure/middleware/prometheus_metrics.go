// Package middleware provides cross-cutting observability adapters for the
// aggregation engine: a Prometheus MetricsCollector and an OpenTelemetry
// run observer.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-pricescout/infrastructure/resilience"
	"github.com/ahrav/go-pricescout/internal/ports"
)

const namespace = "pricescout"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// Known metric names are routed to dedicated vectors; anything else lands in
// generic operation counters and gauges.
type PrometheusMetrics struct {
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	offers           *prometheus.CounterVec
	breakerState     prometheus.Gauge
	breakerTrips     prometheus.Counter
	breakerRejects   prometheus.Counter
	similarity       prometheus.Histogram
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// every metric with reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// Provider call metrics.
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider search calls by outcome.",
			},
			[]string{"provider", "status"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Wall time of provider search calls.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"provider"},
		),

		// Run and selection metrics.
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Aggregation runs by outcome.",
			},
			[]string{"status"},
		),
		offers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offers_total",
				Help:      "Offers seen per provider and pipeline stage.",
			},
			[]string{"provider", "stage"},
		),
		similarity: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "similarity_score",
				Help:      "Similarity of normalized offers against their query.",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),

		// Circuit breaker metrics.
		breakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open.",
			},
		),
		breakerTrips: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_trips_total",
				Help:      "Closed to open circuit breaker transitions.",
			},
		),
		breakerRejects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_rejections_total",
				Help:      "Runs rejected while the circuit breaker was open.",
			},
		),

		// General metrics for everything else.
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Execution time of engine operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Miscellaneous engine events.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_state",
				Help:      "Current values of engine state gauges.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.executionLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "provider_calls_total":
		pm.providerCalls.WithLabelValues(label(labels, "provider"), label(labels, "status")).Add(value)
	case "runs_total":
		pm.runs.WithLabelValues(label(labels, "status")).Add(value)
	case "offers_total":
		pm.offers.WithLabelValues(label(labels, "provider"), label(labels, "stage")).Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	switch metric {
	case "breaker_state":
		pm.breakerState.Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "provider_latency_seconds":
		pm.providerLatency.WithLabelValues(label(labels, "provider")).Observe(value)
	case "similarity_score":
		pm.similarity.Observe(value)
	default:
		pm.executionLatency.WithLabelValues(metric).Observe(value)
	}
}

// RecordState implements resilience.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordState(state resilience.CircuitBreakerState) {
	if state == resilience.StateOpen {
		pm.breakerState.Set(1)
		return
	}
	pm.breakerState.Set(0)
}

// RecordTrip implements resilience.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordTrip() { pm.breakerTrips.Inc() }

// RecordRejection implements resilience.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordRejection() { pm.breakerRejects.Inc() }

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

// Compile-time verification of the implemented interfaces.
var (
	_ ports.MetricsCollector           = (*PrometheusMetrics)(nil)
	_ resilience.CircuitBreakerMetrics = (*PrometheusMetrics)(nil)
)
