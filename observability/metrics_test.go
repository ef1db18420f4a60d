package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	collectors := map[string]prometheus.Collector{
		"DiscoveryRunsTotal":       m.DiscoveryRunsTotal,
		"DiscoveryDuration":        m.DiscoveryDuration,
		"StocksAnalyzedTotal":      m.StocksAnalyzedTotal,
		"StockSkippedTotal":        m.StockSkippedTotal,
		"VerdictBucketsTotal":      m.VerdictBucketsTotal,
		"VerdictProbability":       m.VerdictProbability,
		"AnalysisDuration":         m.AnalysisDuration,
		"EnrichmentResultTotal":    m.EnrichmentResultTotal,
		"AgentDuration":            m.AgentDuration,
		"AgentErrorsTotal":         m.AgentErrorsTotal,
		"AgentScores":              m.AgentScores,
		"ExternalAPIRequestsTotal": m.ExternalAPIRequestsTotal,
		"ExternalAPIErrorsTotal":   m.ExternalAPIErrorsTotal,
		"ExternalAPIDuration":      m.ExternalAPIDuration,
		"DBQueryDuration":          m.DBQueryDuration,
		"DBQueryTotal":             m.DBQueryTotal,
		"DBErrorsTotal":            m.DBErrorsTotal,
		"HTTPRequestsTotal":        m.HTTPRequestsTotal,
		"HTTPRequestDuration":      m.HTTPRequestDuration,
		"HTTPResponseSize":         m.HTTPResponseSize,
		"CircuitBreakerState":      m.CircuitBreakerState,
		"CircuitBreakerTrips":      m.CircuitBreakerTrips,
	}
	for name, c := range collectors {
		if c == nil {
			t.Errorf("%s is nil", name)
		}
	}
}

func TestRecordDiscoveryRun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDiscoveryRun("completed", 2*time.Second)
	m.RecordDiscoveryRun("completed", time.Second)
	m.RecordDiscoveryRun("failed", time.Second)

	if got := testutil.ToFloat64(m.DiscoveryRunsTotal.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DiscoveryRunsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}

func TestRecordStockCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStockAnalyzed("discovery")
	m.RecordStockAnalyzed("discovery")
	m.RecordStockSkipped("agent_error")

	if got := testutil.ToFloat64(m.StocksAnalyzedTotal.WithLabelValues("discovery")); got != 2 {
		t.Errorf("analyzed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StockSkippedTotal.WithLabelValues("agent_error")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestRecordVerdict(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordVerdict("high_probability", 0.72)
	m.RecordVerdict("early_watchlist", 0.5)
	m.RecordVerdict("early_watchlist", 0.47)

	if got := testutil.ToFloat64(m.VerdictBucketsTotal.WithLabelValues("early_watchlist")); got != 2 {
		t.Errorf("watchlist verdicts = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.VerdictProbability); got != 2 {
		t.Errorf("probability series = %d, want 2", got)
	}
}

func TestRecordEnrichment(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEnrichment("groq", "error")
	m.RecordEnrichment("fallback_analysis", "success")

	if got := testutil.ToFloat64(m.EnrichmentResultTotal.WithLabelValues("groq", "error")); got != 1 {
		t.Errorf("groq errors = %v, want 1", got)
	}
}

func TestAgentMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAgentError("fundamental", "malformed_input")
	m.RecordAgentError("fundamental", "malformed_input")
	m.RecordAgentScore("technical", 7)
	m.RecordAgentDuration("technical", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.AgentErrorsTotal.WithLabelValues("fundamental", "malformed_input")); got != 2 {
		t.Errorf("agent errors = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.AgentScores); got != 1 {
		t.Errorf("agent score series = %d, want 1", got)
	}
}

func TestExternalAPIMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordExternalAPIRequest("fmp", "income_statement")
	m.RecordExternalAPIRequest("fmp", "income_statement")
	m.RecordExternalAPIRequest("nse", "bulk_deals")
	m.RecordExternalAPIError("nse", "bulk_deals", "rate_limit")

	if got := testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("fmp", "income_statement")); got != 2 {
		t.Errorf("fmp requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ExternalAPIErrorsTotal.WithLabelValues("nse", "bulk_deals", "rate_limit")); got != 1 {
		t.Errorf("nse errors = %v, want 1", got)
	}
}

func TestDBMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDBQuery("insert", "stock_verdicts", 5*time.Millisecond)
	m.RecordDBError("insert", "stock_verdicts")

	if got := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("insert", "stock_verdicts")); got != 1 {
		t.Errorf("db queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("insert", "stock_verdicts")); got != 1 {
		t.Errorf("db errors = %v, want 1", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("POST", "/api/analyze", "200", 30*time.Millisecond, 2048)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/analyze", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetCircuitBreakerState("groq", 2)
	m.RecordCircuitBreakerTrip("groq")

	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("groq")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("groq")); got != 1 {
		t.Errorf("breaker trips = %v, want 1", got)
	}
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	timer := m.NewTimer()
	time.Sleep(5 * time.Millisecond)

	if timer.Duration() < 5*time.Millisecond {
		t.Errorf("Duration = %v, want >= 5ms", timer.Duration())
	}

	timer.ObserveDiscovery("completed")
	timer.ObserveAnalysis("KEI.NS", "success")
	timer.ObserveAgent("policy")
	timer.ObserveExternalAPI("yahoo", "chart")
	timer.ObserveDB("select", "discovery_runs")

	if got := testutil.ToFloat64(m.DiscoveryRunsTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("ObserveDiscovery should count the run, got %v", got)
	}
	if got := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "discovery_runs")); got != 1 {
		t.Errorf("ObserveDB should count the query, got %v", got)
	}
}

func TestGetMetricsReturnsSingleton(t *testing.T) {
	a := GetMetrics()
	b := GetMetrics()
	if a != b {
		t.Error("GetMetrics should return the same instance")
	}
}
