package agents

import (
	"context"
	"sync"
	"time"

	"multibagger/enrichment"
	"multibagger/models"
)

// mockEnricher returns a fixed insight and remembers the last prompt.
type mockEnricher struct {
	insight *enrichment.Insight
	tried   []string

	mu     sync.Mutex
	calls  int
	prompt enrichment.Prompt
}

func (m *mockEnricher) Enrich(ctx context.Context, prompt enrichment.Prompt) enrichment.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompt = prompt
	return enrichment.Result{Insight: m.insight, Tried: m.tried}
}

// mockRecorder keeps agent runs in memory.
type mockRecorder struct {
	mu      sync.Mutex
	created []*models.AgentRun
	updated []models.AgentRun
	err     error
}

func (m *mockRecorder) CreateAgentRun(ctx context.Context, run *models.AgentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, run)
	return m.err
}

func (m *mockRecorder) UpdateAgentRun(ctx context.Context, run *models.AgentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *run)
	return m.err
}

// stubAgent returns a canned result, error, or panic.
type stubAgent struct {
	agentType models.AgentType
	score     float64
	label     string
	err       error
	panicMsg  string
	block     bool
}

func (s *stubAgent) Name() string { return "stub " + string(s.agentType) }

func (s *stubAgent) Type() models.AgentType { return s.agentType }

func (s *stubAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return models.AgentResult{}, ctx.Err()
	}
	if s.err != nil {
		return models.AgentResult{}, s.err
	}
	r := newResult(s.agentType, snapshot.Symbol)
	r.Score = s.score
	r.Label = s.label
	return r, nil
}

func stubAgents() []Agent {
	return []Agent{
		&stubAgent{agentType: models.AgentTypeFundamental, score: 7},
		&stubAgent{agentType: models.AgentTypeManagement, score: 6, label: AlignmentMedium},
		&stubAgent{agentType: models.AgentTypeTechnical, score: 9, label: StageBreakout},
		&stubAgent{agentType: models.AgentTypeSmartMoney, score: 4, label: AccumulationNo},
		&stubAgent{agentType: models.AgentTypePolicy, score: 6, label: PolicyStrong},
	}
}

var testNow = time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC)

type row map[string]float64

func fiscalYear(year int) time.Time {
	return time.Date(year, 3, 31, 0, 0, 0, 0, time.UTC)
}

// statements builds consecutive fiscal years starting at startYear.
func statements(startYear int, rows ...row) models.StatementSeries {
	out := make(models.StatementSeries, len(rows))
	for i, r := range rows {
		out[i] = models.Statement{Period: fiscalYear(startYear + i), Items: r}
	}
	return out
}

// flatBars returns n daily bars closing at price with a ±5% intraday range.
func flatBars(start time.Time, n int, price float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.05,
			Low:    price * 0.95,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func barsAt(start time.Time, n int, close, high, low float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   close,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1000,
		}
	}
	return bars
}
