package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multibagger/config"
	"multibagger/models"
	"multibagger/observability"
	"multibagger/services"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultIndex is the universe used by RunIndexDiscovery when none is given.
const DefaultIndex = "NIFTY 500"

// Discovery sources recorded on a run.
const (
	SourceRequest = "request"
	SourceIndex   = "index"
)

// ErrSymbolNotAnalyzed is returned by AnalyzeSingle when the stock produced
// no verdict.
var ErrSymbolNotAnalyzed = errors.New("symbol could not be analyzed")

// Analyzer runs the agents for one stock and ranks a batch.
type Analyzer interface {
	AnalyzeSnapshot(ctx context.Context, snapshot *models.StockSnapshot) (*models.StockAnalysis, error)
	AnalyzeForDiscovery(ctx context.Context, discoveryID uuid.UUID, snapshot *models.StockSnapshot) (*models.StockAnalysis, error)
	Synthesize(ctx context.Context, analyses []models.StockAnalysis) models.DiscoveryReport
}

// IndexSource lists the members of a market index.
type IndexSource interface {
	GetIndexConstituents(ctx context.Context, index string) ([]string, error)
}

// DiscoveryRepository defines the repository operations needed by DiscoveryScreener
type DiscoveryRepository interface {
	CreateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error
	UpdateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error
	GetDiscoveryRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error)
	GetLatestDiscoveryRun(ctx context.Context) (*models.DiscoveryRun, error)
	GetDiscoveryRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error)
	SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []models.StockVerdict) error
}

// DiscoveryScreener orchestrates the discovery workflow: universe selection,
// snapshot building, parallel analysis, synthesis, persistence and the JSON
// report. repo, index and reports may be nil.
type DiscoveryScreener struct {
	snapshots services.SnapshotProvider
	analyzer  Analyzer
	index     IndexSource
	repo      DiscoveryRepository
	reports   *ReportWriter
	cfg       config.DiscoveryConfig
}

// NewDiscoveryScreener creates a new DiscoveryScreener
func NewDiscoveryScreener(
	snapshots services.SnapshotProvider,
	analyzer Analyzer,
	index IndexSource,
	repo DiscoveryRepository,
	reports *ReportWriter,
	cfg config.DiscoveryConfig,
) *DiscoveryScreener {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &DiscoveryScreener{
		snapshots: snapshots,
		analyzer:  analyzer,
		index:     index,
		repo:      repo,
		reports:   reports,
		cfg:       cfg,
	}
}

// RunDiscovery analyzes an explicit list of symbols. The list is
// de-duplicated and capped at MaxStocks; no market-cap ceiling applies.
func (s *DiscoveryScreener) RunDiscovery(ctx context.Context, symbols []string, source string) (*models.DiscoveryRun, error) {
	if source == "" {
		source = SourceRequest
	}
	return s.run(ctx, symbols, source, false)
}

// RunIndexDiscovery analyzes the constituents of index, skipping stocks whose
// known market cap is above the configured ceiling.
func (s *DiscoveryScreener) RunIndexDiscovery(ctx context.Context, index string) (*models.DiscoveryRun, error) {
	if s.index == nil {
		return nil, errors.New("no index source configured")
	}
	if index == "" {
		index = DefaultIndex
	}
	symbols, err := s.index.GetIndexConstituents(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s constituents: %w", index, err)
	}
	observability.Info("fetched index constituents", "index", index, "count", len(symbols))
	return s.run(ctx, symbols, SourceIndex+":"+index, true)
}

// AnalyzeSingle runs the full pipeline for one symbol and returns its verdict.
func (s *DiscoveryScreener) AnalyzeSingle(ctx context.Context, symbol string) (*models.StockVerdict, error) {
	symbols := NormalizeSymbols([]string{symbol}, 1)
	if len(symbols) == 0 {
		return nil, errors.New("symbol is required")
	}
	symbol = symbols[0]

	start := time.Now()
	snapshot, err := s.snapshots.Build(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot for %s: %w", symbol, err)
	}
	analysis, err := s.analyzer.AnalyzeSnapshot(ctx, snapshot)
	if err != nil {
		observability.GetMetrics().RecordAnalysisDuration(symbol, "error", time.Since(start))
		return nil, fmt.Errorf("failed to analyze %s: %w", symbol, err)
	}

	report := s.analyzer.Synthesize(ctx, []models.StockAnalysis{*analysis})
	verdict, ok := report.Find(symbol)
	if !ok {
		observability.GetMetrics().RecordAnalysisDuration(symbol, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotAnalyzed, symbol)
	}
	observability.GetMetrics().RecordAnalysisDuration(symbol, "success", time.Since(start))
	return &verdict, nil
}

// stockOutcome is the per-symbol result of the analysis phase.
type stockOutcome struct {
	analysis *models.StockAnalysis
	filtered bool
}

func (s *DiscoveryScreener) run(ctx context.Context, symbols []string, source string, applyCeiling bool) (*models.DiscoveryRun, error) {
	startTime := time.Now()

	criteria := models.DiscoveryCriteria{
		MaxStocks: s.cfg.MaxStocks,
		Source:    source,
	}
	if applyCeiling {
		criteria.MaxMarketCapCrores = s.cfg.MaxMarketCapCrores
	}

	symbols = NormalizeSymbols(symbols, s.cfg.MaxStocks)
	run := models.NewDiscoveryRun(criteria, symbols)
	if s.repo != nil {
		if err := s.repo.CreateDiscoveryRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create discovery run: %w", err)
		}
	}

	if len(symbols) == 0 {
		report := models.NewEmptyReport(models.ErrNoStocksFound, time.Now())
		s.finish(ctx, run, report, startTime)
		return run, nil
	}

	observability.Info("discovery started",
		"run_id", run.ID,
		"source", source,
		"symbols", len(symbols))

	analysisCtx := ctx
	if s.cfg.AnalysisTimeoutSec > 0 {
		var cancel context.CancelFunc
		analysisCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.AnalysisTimeoutSec)*time.Second)
		defer cancel()
	}

	outcomes := s.analyzeInParallel(analysisCtx, run.ID, symbols, applyCeiling)

	analyses := make([]models.StockAnalysis, 0, len(symbols))
	failed := 0
	for i, o := range outcomes {
		switch {
		case o.filtered:
			run.Filtered = append(run.Filtered, symbols[i])
		case o.analysis != nil:
			analyses = append(analyses, *o.analysis)
		default:
			failed++
		}
	}

	var report models.DiscoveryReport
	if len(analyses) == 0 && failed > 0 {
		report = models.NewEmptyReport(models.ErrAnalysisFailed, time.Now())
	} else {
		report = s.analyzer.Synthesize(ctx, analyses)
	}
	report.Summary.SkippedCount += failed

	s.finish(ctx, run, report, startTime)
	return run, nil
}

// analyzeInParallel builds and analyzes every symbol with bounded
// concurrency. Outcomes are returned in input order.
func (s *DiscoveryScreener) analyzeInParallel(ctx context.Context, runID uuid.UUID, symbols []string, applyCeiling bool) []stockOutcome {
	outcomes := make([]stockOutcome, len(symbols))
	metrics := observability.GetMetrics()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	for i, symbol := range symbols {
		g.Go(func() error {
			log := observability.WithSymbol(symbol)
			if err := gctx.Err(); err != nil {
				log.Warn("discovery cancelled before analysis", "error", err)
				metrics.RecordStockSkipped("cancelled")
				return nil
			}

			snapshot, err := s.snapshots.Build(gctx, symbol)
			if err != nil {
				log.Warn("failed to build snapshot", "error", err)
				metrics.RecordStockSkipped("snapshot_error")
				return nil
			}

			if applyCeiling && ExceedsMarketCap(snapshot.Info, s.cfg.MaxMarketCapCrores) {
				log.Info("filtered by market cap ceiling",
					"market_cap", snapshot.Info.MarketCapDisplay(),
					"ceiling_crores", s.cfg.MaxMarketCapCrores)
				metrics.RecordStockSkipped("market_cap")
				outcomes[i] = stockOutcome{filtered: true}
				return nil
			}

			start := time.Now()
			analysis, err := s.analyzer.AnalyzeForDiscovery(gctx, runID, snapshot)
			if err != nil {
				log.Warn("analysis failed for stock", "error", err)
				metrics.RecordAnalysisDuration(symbol, "error", time.Since(start))
				metrics.RecordStockSkipped("analysis_error")
				return nil
			}
			metrics.RecordAnalysisDuration(symbol, "success", time.Since(start))
			metrics.RecordStockAnalyzed("discovery")
			outcomes[i] = stockOutcome{analysis: analysis}
			return nil
		})
	}

	// Per-stock failures are logged and never returned.
	_ = g.Wait()
	return outcomes
}

// finish writes the report file and persists the completed run.
func (s *DiscoveryScreener) finish(ctx context.Context, run *models.DiscoveryRun, report models.DiscoveryReport, startTime time.Time) {
	if s.reports != nil {
		path, err := s.reports.Write(report)
		if err != nil {
			observability.Warn("failed to write discovery report", "run_id", run.ID, "error", err)
		} else {
			run.ReportPath = path
		}
	}

	duration := time.Since(startTime)
	run.Complete(duration.Milliseconds(), report)
	observability.GetMetrics().RecordDiscoveryRun(string(run.Status), duration)

	if s.repo != nil {
		if err := s.repo.UpdateDiscoveryRun(ctx, run); err != nil {
			observability.Warn("failed to update discovery run", "run_id", run.ID, "error", err)
		}
		if err := s.repo.SaveVerdicts(ctx, run.ID, report.Verdicts()); err != nil {
			observability.Warn("failed to save verdicts", "run_id", run.ID, "error", err)
		}
	}

	high, watch, rejected := run.Counts()
	observability.Info("discovery completed",
		"run_id", run.ID,
		"duration_ms", run.DurationMs,
		"high_conviction", high,
		"watchlist", watch,
		"rejected", rejected,
		"filtered", len(run.Filtered),
		"skipped", report.Summary.SkippedCount,
		"report", run.ReportPath)
}

// GetRun returns a specific discovery run by ID
func (s *DiscoveryScreener) GetRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.GetDiscoveryRun(ctx, id)
}

// GetLatestRun returns the most recent discovery run
func (s *DiscoveryScreener) GetLatestRun(ctx context.Context) (*models.DiscoveryRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.GetLatestDiscoveryRun(ctx)
}

// GetRunHistory returns the history of discovery runs
func (s *DiscoveryScreener) GetRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error) {
	if s.repo == nil {
		return []models.DiscoveryRun{}, nil
	}
	return s.repo.GetDiscoveryRunHistory(ctx, limit)
}
