package screener

import (
	"context"
	"sync"
	"time"

	"multibagger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockSnapshotProvider builds snapshots from a map of market caps in crores.
// Symbols listed in Fail return an error.
type MockSnapshotProvider struct {
	MarketCaps map[string]int64
	Fail       map[string]error
	Delay      map[string]time.Duration
}

func (m *MockSnapshotProvider) Build(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	if d := m.Delay[symbol]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.Fail[symbol]; err != nil {
		return nil, err
	}
	snap := &models.StockSnapshot{Symbol: symbol}
	if crores, ok := m.MarketCaps[symbol]; ok {
		snap.Info.MarketCap = decimal.NewFromInt(crores).Mul(decimal.NewFromInt(10_000_000))
	}
	return snap, nil
}

// MockAnalyzer records what it was asked to analyze and synthesizes every
// analysis into the high probability bucket.
type MockAnalyzer struct {
	Fail map[string]error

	mu           sync.Mutex
	discoveryIDs []uuid.UUID
	synthesized  [][]string
}

func (m *MockAnalyzer) AnalyzeSnapshot(ctx context.Context, snapshot *models.StockSnapshot) (*models.StockAnalysis, error) {
	if err := m.Fail[snapshot.Symbol]; err != nil {
		return nil, err
	}
	return &models.StockAnalysis{Symbol: snapshot.Symbol, Info: snapshot.Info}, nil
}

func (m *MockAnalyzer) AnalyzeForDiscovery(ctx context.Context, discoveryID uuid.UUID, snapshot *models.StockSnapshot) (*models.StockAnalysis, error) {
	m.mu.Lock()
	m.discoveryIDs = append(m.discoveryIDs, discoveryID)
	m.mu.Unlock()
	return m.AnalyzeSnapshot(ctx, snapshot)
}

func (m *MockAnalyzer) Synthesize(ctx context.Context, analyses []models.StockAnalysis) models.DiscoveryReport {
	symbols := make([]string, 0, len(analyses))
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(analyses) == 0 {
		m.synthesized = append(m.synthesized, symbols)
		return models.NewEmptyReport(models.ErrNoStocksFound, time.Now())
	}

	report := models.NewEmptyReport("", time.Now())
	for _, a := range analyses {
		symbols = append(symbols, a.Symbol)
		report.HighProbability = append(report.HighProbability, models.StockVerdict{
			Symbol:      a.Symbol,
			Probability: 0.7,
			Bucket:      models.BucketHighProbability,
			MarketCap:   a.Info.MarketCapDisplay(),
		})
	}
	report.Summary.TotalStocksAnalyzed = len(analyses)
	report.Summary.HighConvictionCount = len(analyses)
	m.synthesized = append(m.synthesized, symbols)
	return report
}

// MockIndexSource returns a fixed constituent list.
type MockIndexSource struct {
	Symbols []string
	Err     error
	index   string
}

func (m *MockIndexSource) GetIndexConstituents(ctx context.Context, index string) ([]string, error) {
	m.index = index
	return m.Symbols, m.Err
}

// MockDiscoveryRepository implements DiscoveryRepository for testing
type MockDiscoveryRepository struct {
	CreateDiscoveryRunFunc func(ctx context.Context, run *models.DiscoveryRun) error
	SaveVerdictsFunc       func(ctx context.Context, runID uuid.UUID, verdicts []models.StockVerdict) error

	mu       sync.Mutex
	created  []*models.DiscoveryRun
	updated  []models.DiscoveryRun
	verdicts map[uuid.UUID][]models.StockVerdict
}

func (m *MockDiscoveryRepository) CreateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error {
	if m.CreateDiscoveryRunFunc != nil {
		return m.CreateDiscoveryRunFunc(ctx, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, run)
	return nil
}

func (m *MockDiscoveryRepository) UpdateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *run)
	return nil
}

func (m *MockDiscoveryRepository) GetDiscoveryRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *MockDiscoveryRepository) GetLatestDiscoveryRun(ctx context.Context) (*models.DiscoveryRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.created) == 0 {
		return nil, nil
	}
	return m.created[len(m.created)-1], nil
}

func (m *MockDiscoveryRepository) GetDiscoveryRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DiscoveryRun, 0, len(m.created))
	for i := len(m.created) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.created[i])
	}
	return out, nil
}

func (m *MockDiscoveryRepository) SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []models.StockVerdict) error {
	if m.SaveVerdictsFunc != nil {
		return m.SaveVerdictsFunc(ctx, runID, verdicts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verdicts == nil {
		m.verdicts = make(map[uuid.UUID][]models.StockVerdict)
	}
	m.verdicts[runID] = append(m.verdicts[runID], verdicts...)
	return nil
}
