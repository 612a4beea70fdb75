package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

var (
	_ ports.Provider = (*MockProvider)(nil)
	_ ports.Releaser = (*MockProvider)(nil)
)

// MockProvider is a configurable Provider for tests. It allows precise
// control over offers, latency, failures and panics, and records every call
// so orchestration tests can assert on ordering and isolation.
type MockProvider struct {
	mu sync.Mutex

	Identity domain.ProviderID

	// Response configuration
	Offers        []domain.RawOffer
	Error         error
	ResponseDelay time.Duration
	// IgnoreContext makes the delay uninterruptible, modelling a
	// provider that does not honor cancellation.
	IgnoreContext bool
	// PanicValue, when non-nil, makes Search panic with it.
	PanicValue any
	ReleaseErr error

	// Tracking
	CallCount    int
	Queries      []string
	Started      []time.Time
	Finished     []time.Time
	ReleaseCount int
}

// NewMockProvider creates a mock that returns offers immediately.
func NewMockProvider(id domain.ProviderID, offers ...domain.RawOffer) *MockProvider {
	return &MockProvider{Identity: id, Offers: offers}
}

// ID returns the configured identity.
func (m *MockProvider) ID() domain.ProviderID { return m.Identity }

// Search implements ports.Provider with the configured behavior.
func (m *MockProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	m.mu.Lock()
	m.CallCount++
	m.Queries = append(m.Queries, query)
	m.Started = append(m.Started, time.Now())
	delay, ignore, panicValue := m.ResponseDelay, m.IgnoreContext, m.PanicValue
	offers, err := append([]domain.RawOffer(nil), m.Offers...), m.Error
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.Finished = append(m.Finished, time.Now())
		m.mu.Unlock()
	}()

	if delay > 0 {
		if ignore {
			time.Sleep(delay)
		} else {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if panicValue != nil {
		panic(panicValue)
	}
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if offers[i].Provider == "" {
			offers[i].Provider = m.Identity
		}
	}
	return offers, nil
}

// Release records the call and returns ReleaseErr.
func (m *MockProvider) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCount++
	return m.ReleaseErr
}

// GetCallCount returns the number of Search calls.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetReleaseCount returns the number of Release calls.
func (m *MockProvider) GetReleaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReleaseCount
}

// LastQuery returns the most recent query, or "".
func (m *MockProvider) LastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Queries) == 0 {
		return ""
	}
	return m.Queries[len(m.Queries)-1]
}

// FirstStart returns when the first call started.
func (m *MockProvider) FirstStart() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Started) == 0 {
		return time.Time{}
	}
	return m.Started[0]
}

// LastFinish returns when the latest call returned.
func (m *MockProvider) LastFinish() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Finished) == 0 {
		return time.Time{}
	}
	return m.Finished[len(m.Finished)-1]
}
