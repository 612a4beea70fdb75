package provider

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// timeoutProvider bounds every search by a hard per-call budget.
type timeoutProvider struct {
	next       ports.Provider
	timeout    time.Duration
	classifier ErrorClassifier
}

// TimeoutMiddleware creates middleware that enforces a per-call timeout.
// The search runs on its own goroutine so a provider that ignores
// cancellation is abandoned when the budget expires instead of holding up
// the caller. A panicking provider surfaces as a *PanicError.
// A non-positive timeout only adds panic containment.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.Provider) ports.Provider {
		return &timeoutProvider{
			next:       next,
			timeout:    timeout,
			classifier: ErrorClassifier{Provider: next.ID()},
		}
	}
}

type searchResult struct {
	offers []domain.RawOffer
	err    error
}

// Search executes the search with a timeout context.
func (t *timeoutProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan searchResult, 1)
	go func() {
		var res searchResult
		var pc panics.Catcher
		pc.Try(func() {
			res.offers, res.err = t.next.Search(ctx, query)
		})
		if r := pc.Recovered(); r != nil {
			res = searchResult{err: &PanicError{Provider: t.next.ID(), Value: r.Value, Stack: r.Stack}}
		}
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil && !isClassified(res.err) {
			return nil, t.classifier.ClassifyContextError(ctx.Err())
		}
		return res.offers, res.err
	case <-ctx.Done():
		return nil, t.classifier.ClassifyContextError(ctx.Err())
	}
}

// ID returns the wrapped provider's identity.
func (t *timeoutProvider) ID() domain.ProviderID { return t.next.ID() }

// Unwrap returns the wrapped provider.
func (t *timeoutProvider) Unwrap() ports.Provider { return t.next }
