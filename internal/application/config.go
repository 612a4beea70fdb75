package application

import (
	"time"
)

// Config is the complete runtime configuration of the price lookup service
// and serves as the primary configuration entry point.
type Config struct {
	// Engine tunes scoring, selection and phase scheduling.
	Engine EngineConfig `yaml:"engine"`
	// Breaker configures the process-wide circuit breaker.
	Breaker BreakerConfig `yaml:"breaker"`
	// Throttle configures per-caller pacing.
	Throttle ThrottleConfig `yaml:"throttle"`
	// Providers declares every external offer source and its phase.
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
	// Catalog configures the internal catalog fast path.
	Catalog CatalogConfig `yaml:"catalog"`
	// History configures conversation persistence.
	History HistoryConfig `yaml:"history"`
}

// EngineConfig controls selection and orchestration behavior.
type EngineConfig struct {
	// SimilarityThreshold is the minimum score for an offer to be selectable.
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"min=0,max=1"`
	// FastProvider names the provider whose first offer is reported as fastest.
	FastProvider string `yaml:"fast_provider" validate:"required,providerid"`
	// CleanupTimeout bounds the between-phase cleanup hook.
	CleanupTimeout time.Duration `yaml:"cleanup_timeout" validate:"min=0"`
	// PhaseDelay is an optional pause after cleanup before the next phase.
	PhaseDelay time.Duration `yaml:"phase_delay" validate:"min=0"`
	// Rules is an optional JSON Logic expression evaluated per offer; offers
	// for which it is falsy are not selectable.
	Rules map[string]any `yaml:"rules" validate:"omitempty,jsonlogic"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of failed runs that opens the circuit.
	FailureThreshold int `yaml:"failure_threshold" validate:"min=1,max=1000"`
	// Cooldown is how long the circuit stays open.
	Cooldown time.Duration `yaml:"cooldown" validate:"min=0"`
}

// ThrottleConfig configures per-caller throttling.
type ThrottleConfig struct {
	// MinInterval is the minimum time between runs of one caller; zero disables throttling.
	MinInterval time.Duration `yaml:"min_interval" validate:"min=0"`
	// IdleTTL evicts callers that have been quiet this long.
	IdleTTL time.Duration `yaml:"idle_ttl" validate:"min=0"`
}

// ProviderConfig declares one provider.
type ProviderConfig struct {
	// ID is the unique provider identifier.
	ID string `yaml:"id" validate:"required,providerid"`
	// Phase is the 1-based phase the provider runs in.
	Phase int `yaml:"phase" validate:"min=1,max=16"`
	// Timeout bounds one search call. Defaults to 180s.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// Adapter names the query adapter; empty means passthrough.
	Adapter string `yaml:"adapter" validate:"omitempty,queryadapter"`
	// Kind selects the provider implementation.
	Kind string `yaml:"kind" validate:"required,oneof=http static"`
	// Endpoint is the search URL of an http provider.
	Endpoint string `yaml:"endpoint" validate:"required_if=Kind http,omitempty,url"`
	// QueryParam names the query string parameter of an http provider.
	QueryParam string `yaml:"query_param" validate:"omitempty,max=64"`
	// TokenEnv names the environment variable holding a bearer token.
	TokenEnv string `yaml:"token_env" validate:"omitempty,max=128"`
	// StaticFile is the fixture path of a static provider.
	StaticFile string `yaml:"static_file" validate:"required_if=Kind static"`
	// RateLimit caps requests per second; zero disables pacing.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
	// Burst is the token bucket size used with RateLimit.
	Burst int `yaml:"burst" validate:"min=0,max=1000"`
	// MarkupPercent is applied to displayed prices.
	MarkupPercent float64 `yaml:"markup_percent" validate:"min=0,lt=100"`
}

// CatalogConfig configures the internal catalog.
type CatalogConfig struct {
	// File is the catalog YAML; empty disables the fast path.
	File string `yaml:"file"`
	// Threshold is the minimum catalog match score.
	Threshold float64 `yaml:"threshold" validate:"min=0,max=2"`
	// CacheTTL is how long loaded entries are reused.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"min=0"`
}

// HistoryConfig configures the conversation history store.
type HistoryConfig struct {
	// Backend selects the store implementation.
	Backend string `yaml:"backend" validate:"oneof=memory postgres"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn" validate:"required_if=Backend postgres"`
	// MaxTurns is how many turns are kept per caller.
	MaxTurns int `yaml:"max_turns" validate:"min=1,max=1000"`
}

// Defaults used when a field is absent from the configuration file.
const (
	DefaultSimilarityThreshold = 0.5
	DefaultFastProvider        = "sufarmed"
	DefaultCleanupTimeout      = 30 * time.Second
	DefaultFailureThreshold    = 3
	DefaultCooldown            = 300 * time.Second
	DefaultMinInterval         = 3 * time.Second
	DefaultIdleTTL             = 10 * time.Minute
	DefaultProviderTimeout     = 180 * time.Second
	DefaultCatalogThreshold    = 0.5
	DefaultCatalogTTL          = 300 * time.Second
	DefaultMaxTurns            = 10
)

// DefaultConfig returns a configuration with every default applied and no
// providers. Decoding a file on top of it keeps defaults for absent fields.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			SimilarityThreshold: DefaultSimilarityThreshold,
			FastProvider:        DefaultFastProvider,
			CleanupTimeout:      DefaultCleanupTimeout,
		},
		Breaker: BreakerConfig{
			FailureThreshold: DefaultFailureThreshold,
			Cooldown:         DefaultCooldown,
		},
		Throttle: ThrottleConfig{
			MinInterval: DefaultMinInterval,
			IdleTTL:     DefaultIdleTTL,
		},
		Catalog: CatalogConfig{
			Threshold: DefaultCatalogThreshold,
			CacheTTL:  DefaultCatalogTTL,
		},
		History: HistoryConfig{
			Backend:  "memory",
			MaxTurns: DefaultMaxTurns,
		},
	}
}

// applyProviderDefaults fills per-provider defaults that cannot be
// pre-seeded because the provider list is decoded fresh.
func (c *Config) applyProviderDefaults() {
	for i := range c.Providers {
		if c.Providers[i].Timeout == 0 {
			c.Providers[i].Timeout = DefaultProviderTimeout
		}
		if c.Providers[i].RateLimit > 0 && c.Providers[i].Burst == 0 {
			c.Providers[i].Burst = 1
		}
	}
}

// Provider returns the configuration of id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Markups returns the markup percentage of every provider.
func (c *Config) Markups() map[string]float64 {
	out := make(map[string]float64, len(c.Providers))
	for _, p := range c.Providers {
		out[p.ID] = p.MarkupPercent
	}
	return out
}

// RunBudget is the longest a full run can take: the slowest provider of
// each phase plus cleanup and the pause between phases.
func (c *Config) RunBudget() time.Duration {
	slowest := make(map[int]time.Duration)
	for _, p := range c.Providers {
		if p.Timeout > slowest[p.Phase] {
			slowest[p.Phase] = p.Timeout
		}
	}
	var total time.Duration
	for _, d := range slowest {
		total += d + c.Engine.CleanupTimeout + c.Engine.PhaseDelay
	}
	return total
}
