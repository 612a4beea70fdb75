package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during an aggregation run.
var (
	// ErrEmptyQuery indicates that an aggregation was requested without an item name.
	ErrEmptyQuery = errors.New("empty query")

	// ErrBreakerOpen indicates that the circuit breaker rejected the run
	// before any provider was contacted.
	ErrBreakerOpen = errors.New("circuit breaker is open")

	// ErrThrottled indicates that the caller issued a new run before its
	// minimum interval elapsed.
	ErrThrottled = errors.New("caller throttled")

	// ErrAllProvidersFailed indicates that every provider in every phase
	// errored or timed out.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownProvider indicates a reference to a provider that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
)

// FailureKind classifies why a single provider call produced no offers.
type FailureKind string

// Provider failure kinds.
const (
	// FailureTimeout means the call exceeded its per-call budget.
	FailureTimeout FailureKind = "timeout"
	// FailureError means the provider returned an error.
	FailureError FailureKind = "error"
	// FailurePanic means the provider goroutine panicked and was recovered.
	FailurePanic FailureKind = "panic"
)

// ProviderFailure records one failed provider call within a run.
// Failures are local: they never abort the run on their own.
type ProviderFailure struct {
	// Provider identifies the provider that failed.
	Provider ProviderID
	// Phase is the phase the provider was scheduled in.
	Phase int
	// Kind classifies the failure.
	Kind FailureKind
	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ProviderFailure.
func (f ProviderFailure) Error() string {
	return fmt.Sprintf("provider %s (phase %d) %s: %v", f.Provider, f.Phase, f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f ProviderFailure) Unwrap() error { return f.Err }

// AllProvidersFailedError is returned when no provider produced a response.
// It is the only run-level failure that counts against the circuit breaker.
type AllProvidersFailedError struct {
	// Failures holds one entry per attempted provider call.
	Failures []ProviderFailure
}

// Error implements the error interface for AllProvidersFailedError.
func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%s (%d calls): %s", ErrAllProvidersFailed, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap allows errors.Is(err, ErrAllProvidersFailed).
func (e *AllProvidersFailedError) Unwrap() error { return ErrAllProvidersFailed }

// IsRetryable reports that the caller may try again later.
func (e *AllProvidersFailedError) IsRetryable() bool { return true }

// IsUnavailable reports whether err means "temporarily unavailable, try
// again shortly": breaker open, throttled, or all providers failed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBreakerOpen) ||
		errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrAllProvidersFailed)
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap allows errors.Is(err, ErrInvalidConfiguration).
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
