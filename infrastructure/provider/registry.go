package provider

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Provider kinds understood by the default factories.
const (
	KindHTTP   = "http"
	KindStatic = "static"
)

// Spec is the construction-time configuration of one provider.
type Spec struct {
	ID         domain.ProviderID
	Kind       string
	Endpoint   string
	QueryParam string
	TokenEnv   string
	StaticFile string
	// RateLimit is requests per second; zero disables pacing.
	RateLimit float64
	Burst     int
}

// Factory builds the bare provider for a spec, before middleware.
type Factory func(Spec) (ports.Provider, error)

// RegistryConfig holds configuration shared by every registered provider.
type RegistryConfig struct {
	// ServiceName names the tracer used by TracingMiddleware.
	ServiceName string
	// Metrics receives per-call metrics. Nil disables them.
	Metrics ports.MetricsCollector
	// Middleware is applied inside the standard layers, closest to the provider.
	Middleware []Middleware
}

// Registry builds providers from specs, wraps them in the standard
// middleware chain and keeps them addressable by ID.
type Registry struct {
	mu        sync.RWMutex
	cfg       RegistryConfig
	factories map[string]Factory
	providers map[domain.ProviderID]ports.Provider
}

// NewRegistry creates a registry with the http and static factories.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pricescout"
	}
	r := &Registry{
		cfg:       cfg,
		factories: make(map[string]Factory),
		providers: make(map[domain.ProviderID]ports.Provider),
	}
	r.RegisterFactory(KindHTTP, func(s Spec) (ports.Provider, error) {
		return NewHTTPProvider(s.ID, HTTPOptions{Endpoint: s.Endpoint, QueryParam: s.QueryParam, TokenEnv: s.TokenEnv})
	})
	r.RegisterFactory(KindStatic, func(s Spec) (ports.Provider, error) {
		return LoadStaticProvider(s.ID, s.StaticFile)
	})
	return r
}

// RegisterFactory installs or replaces the factory for kind.
func (r *Registry) RegisterFactory(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Build constructs the provider for spec, wraps it and registers it.
func (r *Registry) Build(spec Spec) (ports.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %s: unsupported kind %q", spec.ID, spec.Kind)
	}

	base, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", spec.ID, err)
	}
	return r.Register(base, spec)
}

// Register wraps an already constructed provider with the standard chain:
// tracing, metrics, rate limit, then any configured middleware. The
// per-call timeout is owned by the orchestrator.
func (r *Registry) Register(base ports.Provider, spec Spec) (ports.Provider, error) {
	if base.ID() != spec.ID {
		return nil, fmt.Errorf("provider id mismatch: built %q for spec %q", base.ID(), spec.ID)
	}

	layers := []Middleware{
		TracingMiddleware(r.cfg.ServiceName),
		MetricsMiddleware(r.cfg.Metrics),
		RateLimitMiddleware(rate.Limit(spec.RateLimit), spec.Burst),
	}
	layers = append(layers, r.cfg.Middleware...)
	wrapped := Chain(base, layers...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[spec.ID]; exists {
		return nil, fmt.Errorf("provider %s already registered", spec.ID)
	}
	r.providers[spec.ID] = wrapped
	return wrapped, nil
}

// Get returns the wrapped provider for id.
func (r *Registry) Get(id domain.ProviderID) (ports.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
	}
	return p, nil
}

// All returns every registered provider ordered by ID.
func (r *Registry) All() []ports.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Cleanup returns the default between-phase hook for every registered
// provider: close idle connections, then release stateful resources.
func (r *Registry) Cleanup() ports.CleanupHook {
	all := r.All()
	return ChainCleanup(IdleConnCleanup(all...), ReleaseCleanup(all...))
}
