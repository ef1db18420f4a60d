package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"multibagger/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// getTestDB returns a migrated repository connected to the test database.
// If DATABASE_URL is not set, the test is skipped.
func getTestDB(t *testing.T) *Repository {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return repo
}

// cleanupDiscoveryRuns removes test discovery runs; verdicts cascade
func cleanupDiscoveryRuns(t *testing.T, repo *Repository) {
	t.Helper()
	repo.pool.Exec(context.Background(), "DELETE FROM discovery_runs WHERE criteria->>'source' LIKE 'TEST%'")
}

// cleanupAgentRuns removes all test agent runs
func cleanupAgentRuns(t *testing.T, repo *Repository) {
	t.Helper()
	repo.pool.Exec(context.Background(), "DELETE FROM agent_runs WHERE symbol LIKE 'TEST%'")
}

// cleanupCache removes all test cache entries
func cleanupCache(t *testing.T, repo *Repository) {
	t.Helper()
	repo.pool.Exec(context.Background(), "DELETE FROM snapshot_cache WHERE symbol LIKE 'TEST%'")
}

func testVerdict(symbol string, probability float64, bucket models.Bucket) models.StockVerdict {
	return models.StockVerdict{
		Symbol:            symbol,
		Sector:            "Industrials",
		MarketCap:         "₹4200 Cr",
		Probability:       probability,
		Bucket:            bucket,
		ExpectedTimeframe: "2-3 years",
		KeyTriggers:       []string{"Strong fundamental growth"},
		MajorRisks:        []string{},
		AgentConsensus:    "BUY (Medium Conviction)",
		DetailedScores: models.DetailedScores{
			FundamentalScore: 8,
			TechnicalStage:   "BREAKOUT",
			PolicyStrength:   "STRONG",
		},
	}
}

// =============================================================================
// Nil repository
// =============================================================================

func TestRepository_NoDatabase(t *testing.T) {
	var repo *Repository
	ctx := context.Background()

	if err := repo.Migrate(ctx); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Migrate error = %v, want ErrNoDatabase", err)
	}
	if _, err := repo.GetSnapshot(ctx, "TEST.NS"); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("GetSnapshot error = %v, want ErrNoDatabase", err)
	}
	if err := repo.CreateAgentRun(ctx, models.NewAgentRun(models.AgentTypePolicy, "TEST.NS")); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("CreateAgentRun error = %v, want ErrNoDatabase", err)
	}
	if _, err := repo.GetDiscoveryRunHistory(ctx, 5); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("GetDiscoveryRunHistory error = %v, want ErrNoDatabase", err)
	}

	empty := &Repository{}
	if err := empty.Health(ctx); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Health error = %v, want ErrNoDatabase", err)
	}
	empty.Close()
}

func TestWithMaxConns(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://localhost/multibagger")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	def := cfg.MaxConns

	WithMaxConns(0)(cfg)
	if cfg.MaxConns != def {
		t.Errorf("MaxConns = %d after zero option, want default %d", cfg.MaxConns, def)
	}
	WithMaxConns(25)(cfg)
	if cfg.MaxConns != 25 {
		t.Errorf("MaxConns = %d, want 25", cfg.MaxConns)
	}
}

func TestNewRepository_InvalidURL(t *testing.T) {
	_, err := NewRepository(context.Background(), "postgres://localhost/db?pool_max_conns=many")
	if err == nil {
		t.Fatal("expected error for invalid pool setting")
	}
}

// =============================================================================
// Discovery Run Tests
// =============================================================================

func TestRepository_DiscoveryRuns_Lifecycle(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()

	criteria := models.DiscoveryCriteria{MaxStocks: 20, MaxMarketCapCrores: 8000, Source: "TEST-lifecycle"}
	run := models.NewDiscoveryRun(criteria, []string{"TEST1.NS", "TEST2.NS"})

	if err := repo.CreateDiscoveryRun(ctx, run); err != nil {
		t.Fatalf("CreateDiscoveryRun failed: %v", err)
	}

	got, err := repo.GetDiscoveryRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDiscoveryRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetDiscoveryRun returned nil")
	}
	if !got.IsRunning() {
		t.Errorf("expected running status, got %s", got.Status)
	}
	if got.Criteria != criteria {
		t.Errorf("criteria = %+v, want %+v", got.Criteria, criteria)
	}
	if len(got.Symbols) != 2 || got.Symbols[1] != "TEST2.NS" {
		t.Errorf("symbols = %v", got.Symbols)
	}
	if got.Report != nil {
		t.Error("running discovery should have no report")
	}

	report := models.NewEmptyReport("", time.Now())
	report.HighProbability = []models.StockVerdict{testVerdict("TEST1.NS", 0.71, models.BucketHighProbability)}
	report.Summary.TotalStocksAnalyzed = 1
	report.Summary.HighConvictionCount = 1
	run.Filtered = []string{"TEST2.NS"}
	run.ReportPath = "results/multibagger_analysis_test.json"
	run.Complete(1250, report)

	if err := repo.UpdateDiscoveryRun(ctx, run); err != nil {
		t.Fatalf("UpdateDiscoveryRun failed: %v", err)
	}

	updated, err := repo.GetDiscoveryRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDiscoveryRun after update failed: %v", err)
	}
	if !updated.IsCompleted() {
		t.Errorf("expected completed status, got %s", updated.Status)
	}
	if updated.DurationMs != 1250 {
		t.Errorf("expected duration 1250, got %d", updated.DurationMs)
	}
	if updated.ReportPath != run.ReportPath {
		t.Errorf("report path = %q", updated.ReportPath)
	}
	if len(updated.Filtered) != 1 || updated.Filtered[0] != "TEST2.NS" {
		t.Errorf("filtered = %v", updated.Filtered)
	}
	high, watch, rejected := updated.Counts()
	if high != 1 || watch != 0 || rejected != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/0/0", high, watch, rejected)
	}
	if v, ok := updated.Report.Find("TEST1.NS"); !ok || v.Probability != 0.71 {
		t.Errorf("report verdict = %+v, %v", v, ok)
	}
}

func TestRepository_DiscoveryRun_Failed(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()
	run := models.NewDiscoveryRun(models.DiscoveryCriteria{Source: "TEST-failed"}, []string{})
	if err := repo.CreateDiscoveryRun(ctx, run); err != nil {
		t.Fatalf("CreateDiscoveryRun failed: %v", err)
	}

	run.Fail("upstream unavailable", 40)
	if err := repo.UpdateDiscoveryRun(ctx, run); err != nil {
		t.Fatalf("UpdateDiscoveryRun failed: %v", err)
	}

	got, err := repo.GetDiscoveryRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDiscoveryRun failed: %v", err)
	}
	if !got.IsFailed() || got.Error != "upstream unavailable" {
		t.Errorf("run = %+v", got)
	}
}

func TestRepository_GetDiscoveryRun_NotFound(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()

	run, err := repo.GetDiscoveryRun(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetDiscoveryRun should not error for non-existent ID: %v", err)
	}
	if run != nil {
		t.Error("GetDiscoveryRun should return nil for non-existent ID")
	}
}

func TestRepository_DiscoveryRunHistory(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()

	var last *models.DiscoveryRun
	for i := 0; i < 3; i++ {
		run := models.NewDiscoveryRun(models.DiscoveryCriteria{Source: "TEST-history"}, []string{"TEST.NS"})
		run.RunAt = time.Now().Add(time.Duration(i) * time.Minute)
		if err := repo.CreateDiscoveryRun(ctx, run); err != nil {
			t.Fatalf("CreateDiscoveryRun failed: %v", err)
		}
		last = run
	}

	history, err := repo.GetDiscoveryRunHistory(ctx, 2)
	if err != nil {
		t.Fatalf("GetDiscoveryRunHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(history))
	}
	if history[0].RunAt.Before(history[1].RunAt) {
		t.Error("history should be ordered newest first")
	}

	latest, err := repo.GetLatestDiscoveryRun(ctx)
	if err != nil {
		t.Fatalf("GetLatestDiscoveryRun failed: %v", err)
	}
	if latest == nil || latest.ID != last.ID {
		t.Errorf("latest = %+v, want %s", latest, last.ID)
	}
}

// =============================================================================
// Verdict Tests
// =============================================================================

func TestRepository_Verdicts(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()
	run := models.NewDiscoveryRun(models.DiscoveryCriteria{Source: "TEST-verdicts"}, []string{"TESTA.NS", "TESTB.NS"})
	if err := repo.CreateDiscoveryRun(ctx, run); err != nil {
		t.Fatalf("CreateDiscoveryRun failed: %v", err)
	}

	verdicts := []models.StockVerdict{
		testVerdict("TESTB.NS", 0.48, models.BucketWatchlist),
		testVerdict("TESTA.NS", 0.66, models.BucketHighProbability),
	}
	if err := repo.SaveVerdicts(ctx, run.ID, verdicts); err != nil {
		t.Fatalf("SaveVerdicts failed: %v", err)
	}

	records, err := repo.GetVerdictsForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetVerdictsForRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(records))
	}
	if records[0].Verdict.Symbol != "TESTA.NS" || records[1].Verdict.Symbol != "TESTB.NS" {
		t.Errorf("verdicts not ordered by probability: %s, %s", records[0].Verdict.Symbol, records[1].Verdict.Symbol)
	}
	if records[0].RunID != run.ID {
		t.Errorf("run id = %s, want %s", records[0].RunID, run.ID)
	}
	if records[0].Verdict.DetailedScores.TechnicalStage != "BREAKOUT" {
		t.Errorf("detailed scores not round-tripped: %+v", records[0].Verdict.DetailedScores)
	}

	history, err := repo.GetVerdictHistory(ctx, "TESTB.NS", 5)
	if err != nil {
		t.Fatalf("GetVerdictHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Verdict.Bucket != models.BucketWatchlist {
		t.Errorf("history = %+v", history)
	}

	if err := repo.SaveVerdicts(ctx, run.ID, nil); err != nil {
		t.Errorf("SaveVerdicts with no verdicts should be a no-op: %v", err)
	}
}

// =============================================================================
// Agent Run Tests
// =============================================================================

func TestRepository_AgentRuns_Lifecycle(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupAgentRuns(t, repo)

	ctx := context.Background()

	run := models.NewAgentRun(models.AgentTypeFundamental, "TEST001.NS")
	if err := repo.CreateAgentRun(ctx, run); err != nil {
		t.Fatalf("CreateAgentRun failed: %v", err)
	}

	result := models.AgentResult{
		AgentType: models.AgentTypeFundamental,
		Symbol:    "TEST001.NS",
		Score:     7.5,
		Evidence:  []string{"Revenue CAGR improving: 20.0%"},
		Risks:     []string{},
	}
	run.Complete(result)
	if err := repo.UpdateAgentRun(ctx, run); err != nil {
		t.Fatalf("UpdateAgentRun failed: %v", err)
	}

	got, err := repo.GetAgentRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgentRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetAgentRun returned nil")
	}
	if got.Status != models.AgentRunStatusCompleted {
		t.Errorf("expected completed status, got %s", got.Status)
	}
	if got.Score == nil || *got.Score != 7.5 {
		t.Errorf("score = %v, want 7.5", got.Score)
	}
	if got.OutputData["score"] != 7.5 {
		t.Errorf("output data = %v", got.OutputData)
	}
	if got.CompletedAt == nil {
		t.Error("completed run should have CompletedAt")
	}
	if got.DiscoveryID != nil {
		t.Errorf("standalone run should have no discovery id, got %v", got.DiscoveryID)
	}
}

func TestRepository_AgentRun_Failed(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupAgentRuns(t, repo)

	ctx := context.Background()
	run := models.NewAgentRun(models.AgentTypeTechnical, "TEST002.NS")
	if err := repo.CreateAgentRun(ctx, run); err != nil {
		t.Fatalf("CreateAgentRun failed: %v", err)
	}
	run.Fail(errors.New("need at least 252 price bars"))
	if err := repo.UpdateAgentRun(ctx, run); err != nil {
		t.Fatalf("UpdateAgentRun failed: %v", err)
	}

	got, err := repo.GetAgentRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgentRun failed: %v", err)
	}
	if got.Status != models.AgentRunStatusFailed || got.ErrorMessage != "need at least 252 price bars" {
		t.Errorf("run = %+v", got)
	}
	if got.Score != nil {
		t.Errorf("failed run should have no score, got %v", *got.Score)
	}
}

func TestRepository_AgentRuns_Filtering(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupAgentRuns(t, repo)
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()
	discovery := models.NewDiscoveryRun(models.DiscoveryCriteria{Source: "TEST-agents"}, []string{"TEST003.NS"})
	if err := repo.CreateDiscoveryRun(ctx, discovery); err != nil {
		t.Fatalf("CreateDiscoveryRun failed: %v", err)
	}

	for _, agentType := range models.AllAgentTypes() {
		run := models.NewAgentRun(agentType, "TEST003.NS")
		run.DiscoveryID = &discovery.ID
		if err := repo.CreateAgentRun(ctx, run); err != nil {
			t.Fatalf("CreateAgentRun(%s) failed: %v", agentType, err)
		}
	}

	policyRuns, err := repo.GetAgentRuns(ctx, models.AgentTypePolicy, 100)
	if err != nil {
		t.Fatalf("GetAgentRuns failed: %v", err)
	}
	for _, r := range policyRuns {
		if r.AgentType != models.AgentTypePolicy {
			t.Errorf("filter leaked %s run", r.AgentType)
		}
	}

	symbolRuns, err := repo.GetRecentRunsForSymbol(ctx, "TEST003.NS", 10)
	if err != nil {
		t.Fatalf("GetRecentRunsForSymbol failed: %v", err)
	}
	if len(symbolRuns) != 5 {
		t.Errorf("expected 5 runs, got %d", len(symbolRuns))
	}
	for _, r := range symbolRuns {
		if r.DiscoveryID == nil || *r.DiscoveryID != discovery.ID {
			t.Errorf("run %s not linked to discovery", r.ID)
		}
	}

	limited, err := repo.GetAgentRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("GetAgentRuns without filter failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

// =============================================================================
// Snapshot Cache Tests
// =============================================================================

func TestRepository_SnapshotCache(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()

	snapshot := &models.StockSnapshot{
		Symbol: "TESTCACHE.NS",
		Info: models.CompanyInfo{
			Name:      "Test Cables",
			Sector:    "Industrials",
			MarketCap: decimal.NewFromInt(42_000_000_000),
		},
		Shareholding: models.Shareholding{PromoterPercent: 62.5},
		FetchedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := repo.SetSnapshot(ctx, snapshot, 10*time.Minute); err != nil {
		t.Fatalf("SetSnapshot failed: %v", err)
	}

	got, err := repo.GetSnapshot(ctx, "TESTCACHE.NS")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetSnapshot returned nil")
	}
	if got.Info.MarketCapDisplay() != "₹4200 Cr" {
		t.Errorf("market cap = %s", got.Info.MarketCapDisplay())
	}
	if got.Shareholding.PromoterPercent != 62.5 {
		t.Errorf("promoter percent = %v", got.Shareholding.PromoterPercent)
	}

	// Overwrite replaces the entry
	snapshot.Shareholding.PromoterPercent = 60
	if err := repo.SetSnapshot(ctx, snapshot, 10*time.Minute); err != nil {
		t.Fatalf("SetSnapshot overwrite failed: %v", err)
	}
	got, _ = repo.GetSnapshot(ctx, "TESTCACHE.NS")
	if got.Shareholding.PromoterPercent != 60 {
		t.Errorf("overwritten promoter percent = %v", got.Shareholding.PromoterPercent)
	}

	if err := repo.InvalidateSnapshot(ctx, "TESTCACHE.NS"); err != nil {
		t.Fatalf("InvalidateSnapshot failed: %v", err)
	}
	got, err = repo.GetSnapshot(ctx, "TESTCACHE.NS")
	if err != nil {
		t.Fatalf("GetSnapshot after invalidate failed: %v", err)
	}
	if got != nil {
		t.Error("snapshot should be gone after invalidate")
	}
}

func TestRepository_SnapshotCache_Expired(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()
	snapshot := &models.StockSnapshot{Symbol: "TESTEXPIRED.NS"}

	if err := repo.SetSnapshot(ctx, snapshot, -time.Minute); err != nil {
		t.Fatalf("SetSnapshot failed: %v", err)
	}

	got, err := repo.GetSnapshot(ctx, "TESTEXPIRED.NS")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got != nil {
		t.Error("expired snapshot should not be returned")
	}

	removed, err := repo.CleanExpiredSnapshots(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredSnapshots failed: %v", err)
	}
	if removed < 1 {
		t.Errorf("expected at least 1 expired entry removed, got %d", removed)
	}
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestRepository_TransactionRollback(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupDiscoveryRuns(t, repo)

	ctx := context.Background()

	tx, txRepo, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}

	run := models.NewDiscoveryRun(models.DiscoveryCriteria{Source: "TEST-tx"}, []string{"TEST.NS"})
	if err := txRepo.CreateDiscoveryRun(ctx, run); err != nil {
		tx.Rollback(ctx)
		t.Fatalf("CreateDiscoveryRun in tx failed: %v", err)
	}
	if err := txRepo.SaveVerdicts(ctx, run.ID, []models.StockVerdict{testVerdict("TEST.NS", 0.5, models.BucketWatchlist)}); err != nil {
		tx.Rollback(ctx)
		t.Fatalf("SaveVerdicts in tx failed: %v", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	got, err := repo.GetDiscoveryRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDiscoveryRun failed: %v", err)
	}
	if got != nil {
		t.Error("rolled back discovery run should not exist")
	}
}

func TestRepository_Health(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()

	if err := repo.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
