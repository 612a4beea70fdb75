package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// TestRateLimitMiddleware_AllowsRequestsWithinLimit verifies a single call
// passes straight through.
func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	mock := NewMockProvider("sufarmed", domain.RawOffer{Name: "A", Price: "10"})
	wrapped := RateLimitMiddleware(rate.Limit(10), 1)(mock)

	offers, err := wrapped.Search(context.Background(), "paracetamol")

	require.NoError(t, err, "request should succeed within rate limit")
	assert.Len(t, offers, 1, "offers should pass through")
	assert.Equal(t, 1, mock.GetCallCount(), "should call underlying provider once")
}

// TestRateLimitMiddleware_RespectsContextCancellation verifies a queued call
// gives up when its context expires.
func TestRateLimitMiddleware_RespectsContextCancellation(t *testing.T) {
	mock := NewMockProvider("sufarmed")
	wrapped := RateLimitMiddleware(rate.Limit(0.1), 1)(mock)

	_, err := wrapped.Search(context.Background(), "first")
	require.NoError(t, err, "first request should consume the token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = wrapped.Search(ctx, "second")

	require.Error(t, err, "second request should be rejected")
	assert.Contains(t, err.Error(), "rate limit", "error should name the limiter")
	assert.Equal(t, 1, mock.GetCallCount(), "should not call provider on cancelled wait")
}

// TestRateLimitMiddleware_DisabledForNonPositiveLimit verifies the
// constructor returns no middleware when pacing is off.
func TestRateLimitMiddleware_DisabledForNonPositiveLimit(t *testing.T) {
	assert.Nil(t, RateLimitMiddleware(0, 1), "zero limit should disable the middleware")
}

// TestMetricsMiddleware_RecordsSuccessfulSearches verifies labels for a hit.
func TestMetricsMiddleware_RecordsSuccessfulSearches(t *testing.T) {
	mock := NewMockProvider("nadro", domain.RawOffer{Name: "A"}, domain.RawOffer{Name: "B"})
	metrics := newRecordingCollector()
	wrapped := MetricsMiddleware(metrics)(mock)

	_, err := wrapped.Search(context.Background(), "q")

	require.NoError(t, err, "search should succeed")
	assert.Equal(t, 1.0, metrics.counters[MetricProviderCalls+":nadro:success"], "should count the call")
	assert.Equal(t, 2.0, metrics.counters[MetricProviderOffers+":nadro"], "should count raw offers")
	assert.Len(t, metrics.histograms[MetricProviderLatency+":nadro"], 1, "should record latency")
}

// TestMetricsMiddleware_RecordsFailureStatus verifies the status label for
// empty, error and timeout outcomes.
func TestMetricsMiddleware_RecordsFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"empty", nil, StatusEmpty},
		{"error", errors.New("boom"), StatusError},
		{"timeout", context.DeadlineExceeded, StatusTimeout},
		{"cancelled", context.Canceled, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider("fanasa")
			mock.Error = tt.err
			metrics := newRecordingCollector()

			_, _ = MetricsMiddleware(metrics)(mock).Search(context.Background(), "q")

			assert.Equal(t, 1.0, metrics.counters[MetricProviderCalls+":fanasa:"+tt.status],
				"status label should be %s", tt.status)
		})
	}
}

// TestMetricsMiddleware_NilCollector verifies a nil collector disables it.
func TestMetricsMiddleware_NilCollector(t *testing.T) {
	assert.Nil(t, MetricsMiddleware(nil), "nil collector should disable the middleware")
}

// TestTimeoutMiddleware_ReturnsBeforeSlowProvider verifies the call is
// bounded by the timeout and classified as a timeout.
func TestTimeoutMiddleware_ReturnsBeforeSlowProvider(t *testing.T) {
	mock := NewMockProvider("nadro")
	mock.ResponseDelay = 2 * time.Second
	wrapped := TimeoutMiddleware(50 * time.Millisecond)(mock)

	start := time.Now()
	_, err := wrapped.Search(context.Background(), "q")
	elapsed := time.Since(start)

	require.Error(t, err, "slow call should fail")
	assert.True(t, IsTimeout(err), "error should be a timeout: %v", err)
	assert.Less(t, elapsed, time.Second, "call should return near the timeout")
}

// TestTimeoutMiddleware_AbandonsProviderIgnoringContext verifies a provider
// that never checks its context cannot hold the caller past the budget.
func TestTimeoutMiddleware_AbandonsProviderIgnoringContext(t *testing.T) {
	mock := NewMockProvider("nadro")
	mock.ResponseDelay = 500 * time.Millisecond
	mock.IgnoreContext = true
	wrapped := TimeoutMiddleware(30 * time.Millisecond)(mock)

	start := time.Now()
	_, err := wrapped.Search(context.Background(), "q")

	require.Error(t, err, "abandoned call should fail")
	assert.True(t, IsTimeout(err), "error should be a timeout: %v", err)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "caller should not wait for the provider")
}

// TestTimeoutMiddleware_PassesFastResults verifies normal calls are untouched.
func TestTimeoutMiddleware_PassesFastResults(t *testing.T) {
	mock := NewMockProvider("sufarmed", domain.RawOffer{Name: "A"})
	offers, err := TimeoutMiddleware(time.Second)(mock).Search(context.Background(), "q")

	require.NoError(t, err, "fast call should succeed")
	assert.Len(t, offers, 1, "offers should pass through")
}

// TestTimeoutMiddleware_ContainsPanics verifies a panic becomes a PanicError.
func TestTimeoutMiddleware_ContainsPanics(t *testing.T) {
	mock := NewMockProvider("difarmer")
	mock.PanicValue = "driver crashed"

	_, err := TimeoutMiddleware(time.Second)(mock).Search(context.Background(), "q")

	var pe *PanicError
	require.ErrorAs(t, err, &pe, "panic should surface as PanicError")
	assert.Equal(t, domain.ProviderID("difarmer"), pe.Provider, "provider should be recorded")
	assert.Equal(t, "driver crashed", pe.Value, "panic value should be kept")
	assert.NotEmpty(t, pe.Stack, "stack should be captured")
}

// TestTimeoutMiddleware_KeepsProviderErrors verifies non-timeout errors pass.
func TestTimeoutMiddleware_KeepsProviderErrors(t *testing.T) {
	mock := NewMockProvider("difarmer")
	mock.Error = errors.New("login rejected")

	_, err := TimeoutMiddleware(time.Second)(mock).Search(context.Background(), "q")

	require.Error(t, err, "error should propagate")
	assert.Equal(t, "login rejected", err.Error(), "original error should be returned")
	assert.False(t, IsTimeout(err), "error should not be a timeout")
}

// TestTracingMiddleware_PassesThrough verifies spans do not alter results.
func TestTracingMiddleware_PassesThrough(t *testing.T) {
	mock := NewMockProvider("fanasa", domain.RawOffer{Name: "A"})
	wrapped := TracingMiddleware("pricescout-test")(mock)

	offers, err := wrapped.Search(context.Background(), "q")
	require.NoError(t, err, "search should succeed")
	assert.Len(t, offers, 1, "offers should pass through")

	mock.Error = errors.New("boom")
	_, err = wrapped.Search(context.Background(), "q")
	assert.EqualError(t, err, "boom", "errors should pass through")
	assert.Equal(t, domain.ProviderID("fanasa"), wrapped.ID(), "ID should pass through")
}
