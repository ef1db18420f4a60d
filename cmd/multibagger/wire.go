package main

import (
	"context"
	"fmt"
	"time"

	"multibagger/agents"
	"multibagger/config"
	"multibagger/enrichment"
	"multibagger/internal/app"
	"multibagger/internal/settings"
	"multibagger/observability"
	"multibagger/repository"
	"multibagger/screener"
	"multibagger/services"
)

// system is the wired object graph shared by every command.
type system struct {
	cfg       *config.Config
	repo      *repository.Repository
	pipeline  *agents.Pipeline
	discovery *screener.DiscoveryScreener
	app       *app.App
}

// loadConfig reads the environment, overlays vault credentials and installs
// the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	observability.Configure(observability.LogOptions{
		JSON:  cfg.Log.Format == "json",
		Level: observability.ParseLevel(cfg.Log.Level),
	})

	vault, err := settings.Open(cfg.Vault.Dir, cfg.Vault.Passphrase)
	if err != nil {
		observability.Warn("credential vault unavailable", "error", err)
		return cfg, nil
	}
	if applied := vault.ApplyTo(cfg); len(applied) > 0 {
		observability.Info("credentials loaded from vault", "services", applied)
	}
	return cfg, nil
}

// buildSystem wires repository, data services, agents and the screener.
// Every external dependency is optional; missing ones are logged.
func buildSystem(ctx context.Context, cfg *config.Config) (*system, error) {
	sys := &system{cfg: cfg}

	var (
		recorder  agents.AgentRunRecorder
		cache     services.SnapshotCache
		discRepo  screener.DiscoveryRepository
		queryRepo app.RepositoryInterface
	)
	if cfg.HasDatabase() {
		repo, err := repository.NewRepository(ctx, cfg.Database.URL, repository.WithMaxConns(cfg.Database.MaxConns))
		if err != nil {
			observability.Warn("database unavailable, running without persistence", "error", err)
		} else if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		} else {
			sys.repo = repo
			recorder, cache, discRepo, queryRepo = repo, repo, repo, repo
			if n, err := repo.CleanExpiredSnapshots(ctx); err != nil {
				observability.Warn("failed to clean snapshot cache", "error", err)
			} else if n > 0 {
				observability.Debug("expired snapshots removed", "count", n)
			}
		}
	} else {
		observability.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	var (
		fundamentals services.FundamentalsServiceInterface
		news         services.NewsAPIServiceInterface
	)
	if cfg.HasFMP() {
		fundamentals = services.NewFMPService(cfg)
	} else {
		observability.Warn("FMP_API_KEY not set, fundamentals will be empty")
	}
	if cfg.HasNewsAPI() {
		news = services.NewNewsAPIService(cfg)
	} else {
		observability.Warn("NEWS_API_KEY not set, news-driven agents will see no articles")
	}
	nse := services.NewNSEService(cfg)

	builder := services.NewSnapshotBuilder(
		fundamentals,
		services.NewYahooService(cfg),
		nse,
		news,
		cache,
		services.SnapshotOptions{
			BenchmarkSymbol: cfg.Yahoo.BenchmarkSymbol,
			HistoryRange:    cfg.Yahoo.HistoryRange,
			NewsPageSize:    cfg.NewsAPI.PageSize,
			CacheTTL:        time.Duration(cfg.Discovery.SnapshotCacheMinutes) * time.Minute,
		},
	)

	chain := enrichment.NewChain(
		enrichment.BuildProviders(ctx, cfg),
		time.Duration(cfg.Enrichment.HealthCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Enrichment.TimeoutSeconds)*time.Second,
	)
	observability.Info("enrichment chain ready", "providers", chain.Providers())

	sys.pipeline = agents.NewDefaultPipeline(cfg, recorder, chain)
	sys.discovery = screener.NewDiscoveryScreener(
		builder,
		sys.pipeline,
		nse,
		discRepo,
		screener.NewReportWriter(cfg.Discovery.ResultsDir),
		cfg.Discovery,
	)

	sets, err := config.LoadStockSets(cfg.Discovery.StockSetsFile)
	if err != nil {
		sys.close()
		return nil, err
	}

	sys.app = app.New(cfg, queryRepo, sys.discovery, sys.pipeline, sets)
	sys.app.Startup(ctx)
	return sys, nil
}

func (s *system) close() {
	if s.app != nil {
		s.app.Shutdown(context.Background())
		return
	}
	if s.repo != nil {
		s.repo.Close()
	}
}
