package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// rateLimitedProvider paces outbound searches with a token bucket so that
// concurrent runs do not exceed a provider's published request rate.
type rateLimitedProvider struct {
	next    ports.Provider
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces a token bucket of
// limit requests per second with the given burst. A non-positive limit
// disables pacing.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	if limit <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.Provider) ports.Provider {
		return &rateLimitedProvider{
			next:    next,
			limiter: limiter,
		}
	}
}

// Search waits for a token before forwarding. The wait honors ctx, so a
// provider's per-call timeout also bounds time spent queued here.
func (r *rateLimitedProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Search(ctx, query)
}

// ID returns the wrapped provider's identity.
func (r *rateLimitedProvider) ID() domain.ProviderID { return r.next.ID() }

// Unwrap returns the wrapped provider.
func (r *rateLimitedProvider) Unwrap() ports.Provider { return r.next }
