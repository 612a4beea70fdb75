package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/infrastructure/matching"
	"github.com/ahrav/go-pricescout/infrastructure/middleware"
	"github.com/ahrav/go-pricescout/infrastructure/provider"
	"github.com/ahrav/go-pricescout/infrastructure/resilience"
	"github.com/ahrav/go-pricescout/infrastructure/storage"
	"github.com/ahrav/go-pricescout/internal/application"
	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// service is the fully wired quote flow plus the handles the commands need.
type service struct {
	quoter   *application.Quoter
	breaker  *resilience.CircuitBreaker
	throttle *resilience.Throttle
	gatherer prometheus.Gatherer
	closers  []func()
}

// Close releases long-lived resources in reverse order of creation.
func (s *service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildService wires configuration into providers, orchestrator, engine and
// quoter. dsn, when set, overrides the configured history DSN.
func buildService(ctx context.Context, cfg *application.Config, dsn string, logger *log.Logger) (*service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewPrometheusMetrics(reg)

	registry := provider.NewRegistry(provider.RegistryConfig{ServiceName: "pricescout", Metrics: metrics})
	regs := make([]application.Registration, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := registry.Build(provider.Spec{
			ID:         domain.ProviderID(pc.ID),
			Kind:       pc.Kind,
			Endpoint:   pc.Endpoint,
			QueryParam: pc.QueryParam,
			TokenEnv:   pc.TokenEnv,
			StaticFile: pc.StaticFile,
			RateLimit:  pc.RateLimit,
			Burst:      pc.Burst,
		})
		if err != nil {
			return nil, err
		}
		adapter, err := matching.AdapterByName(pc.Adapter)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.ID, err)
		}
		regs = append(regs, application.Registration{
			Descriptor: domain.ProviderDescriptor{
				ID:      domain.ProviderID(pc.ID),
				Phase:   pc.Phase,
				Timeout: pc.Timeout,
				Adapter: adapter,
			},
			Provider: p,
		})
	}

	orchestrator, err := application.NewOrchestrator(regs,
		application.WithCleanupHook(registry.Cleanup()),
		application.WithCleanupTimeout(cfg.Engine.CleanupTimeout),
		application.WithPhaseDelay(cfg.Engine.PhaseDelay),
		application.WithOrchestratorLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	rules, err := application.NewOfferRules(cfg.Engine.Rules)
	if err != nil {
		return nil, err
	}
	scorer := matching.NewScorer()
	selector := application.NewSelector(scorer, cfg.Engine.SimilarityThreshold, domain.ProviderID(cfg.Engine.FastProvider),
		application.WithOfferRules(rules),
		application.WithSelectorLogger(logger),
	)

	breaker := resilience.NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown,
		resilience.WithBreakerMetrics(metrics))
	throttle := resilience.NewThrottle(cfg.Throttle.MinInterval, resilience.WithIdleTTL(cfg.Throttle.IdleTTL))

	engine := application.NewEngine(breaker, throttle, orchestrator, selector,
		application.WithRunObserver(middleware.NewOTelRunObserver(metrics)),
		application.WithEngineMetrics(metrics),
		application.WithEngineLogger(logger),
	)

	markups := application.Markups{}
	for id, pct := range cfg.Markups() {
		markups[domain.ProviderID(id)] = pct
	}
	opts := []application.QuoterOption{
		application.WithMarkups(markups),
		application.WithQuoterLogger(logger),
	}
	if cfg.Catalog.File != "" {
		catalog := storage.NewCatalog(storage.FileSource(cfg.Catalog.File), scorer, cfg.Catalog.CacheTTL,
			storage.WithCatalogLogger(logger))
		opts = append(opts, application.WithCatalog(catalog, cfg.Catalog.Threshold))
	}

	svc := &service{breaker: breaker, throttle: throttle, gatherer: reg}
	history, closer, err := buildHistory(ctx, cfg.History, dsn, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		svc.closers = append(svc.closers, closer)
	}
	opts = append(opts, application.WithHistory(history), application.WithRunBudget(cfg.RunBudget()))

	svc.quoter = application.NewQuoter(engine, opts...)
	return svc, nil
}

func buildHistory(ctx context.Context, cfg application.HistoryConfig, dsn string, logger *log.Logger) (ports.HistoryStore, func(), error) {
	if dsn == "" {
		dsn = cfg.DSN
	}
	if cfg.Backend != "postgres" && dsn == "" {
		return storage.NewMemoryHistory(cfg.MaxTurns), nil, nil
	}
	h, err := storage.NewPostgresHistory(ctx, dsn, storage.PostgresOptions{MaxTurns: cfg.MaxTurns, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return h, h.Close, nil
}
