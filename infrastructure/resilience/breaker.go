// Package resilience guards the aggregation engine against hammering
// providers that are down (CircuitBreaker) and against callers that
// re-issue expensive runs too quickly (Throttle).
package resilience

import (
	"sync"
	"time"
)

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
// There is no half-open state: once the cooldown has elapsed the next
// Allow closes the circuit and that call's outcome updates state normally.
const (
	// StateClosed allows all runs to proceed.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects runs immediately until the cooldown elapses.
	StateOpen
)

// String returns the lowercase state name.
func (s CircuitBreakerState) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// CircuitBreakerMetrics enables observability for circuit breaker behavior.
// Implementations can integrate with monitoring systems to track
// circuit breaker state changes, trips, and recovery patterns.
type CircuitBreakerMetrics interface {
	// RecordState updates the current circuit breaker state metric.
	RecordState(state CircuitBreakerState)

	// RecordTrip increments the counter of closed-to-open transitions.
	RecordTrip()

	// RecordRejection increments the counter of runs rejected while open.
	RecordRejection()
}

// Snapshot is a point-in-time copy of the breaker's state.
type Snapshot struct {
	State               CircuitBreakerState
	ConsecutiveFailures int
	OpenedAt            time.Time
	FailureThreshold    int
	Cooldown            time.Duration
}

// CircuitBreaker tracks consecutive run-level failures. It opens after
// failureThreshold failures and rejects runs until cooldown has passed
// since it opened. It is safe for concurrent use across overlapping runs.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	now              func() time.Time
	metrics          CircuitBreakerMetrics
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock replaces time.Now, mainly for tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithBreakerMetrics attaches a metrics sink.
func WithBreakerMetrics(m CircuitBreakerMetrics) BreakerOption {
	return func(cb *CircuitBreaker) { cb.metrics = m }
}

// NewCircuitBreaker creates a closed circuit breaker.
// A threshold below 1 is treated as 1.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	cb := &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a new run may start. While open it returns false
// until more than cooldown has elapsed since the circuit opened; the first
// call after that closes the circuit and resets the failure count.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		return true
	}
	if cb.now().Sub(cb.openedAt) > cb.cooldown {
		cb.state = StateClosed
		cb.failureCount = 0
		cb.openedAt = time.Time{}
		cb.recordState()
		return true
	}
	if cb.metrics != nil {
		cb.metrics.RecordRejection()
	}
	return false
}

// Record updates the breaker with a run outcome. Success moves the failure
// count one step toward zero; failure increments it and opens the circuit
// once the threshold is reached.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		if cb.failureCount > 0 {
			cb.failureCount--
		}
		return
	}

	cb.failureCount++
	if cb.state == StateClosed && cb.failureCount >= cb.failureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		if cb.metrics != nil {
			cb.metrics.RecordTrip()
		}
		cb.recordState()
	}
}

// GetState returns the current circuit breaker state without applying
// the cooldown transition.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns a copy of the breaker's state for diagnostics.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.failureCount,
		OpenedAt:            cb.openedAt,
		FailureThreshold:    cb.failureThreshold,
		Cooldown:            cb.cooldown,
	}
}

// recordState must be called with mu held.
func (cb *CircuitBreaker) recordState() {
	if cb.metrics != nil {
		cb.metrics.RecordState(cb.state)
	}
}
