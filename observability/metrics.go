package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multibagger"

// Metrics holds all Prometheus collectors used by the service.
type Metrics struct {
	// Discovery metrics
	DiscoveryRunsTotal    *prometheus.CounterVec
	DiscoveryDuration     *prometheus.HistogramVec
	StocksAnalyzedTotal   *prometheus.CounterVec
	StockSkippedTotal     *prometheus.CounterVec
	VerdictBucketsTotal   *prometheus.CounterVec
	VerdictProbability    *prometheus.HistogramVec
	AnalysisDuration      *prometheus.HistogramVec
	EnrichmentResultTotal *prometheus.CounterVec

	// Agent metrics
	AgentDuration    *prometheus.HistogramVec
	AgentErrorsTotal *prometheus.CounterVec
	AgentScores      *prometheus.HistogramVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are duration buckets in seconds.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// agentScoreBuckets cover the 0-10 agent score range.
var agentScoreBuckets = []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// probabilityBuckets cover the 0-1 multibagger probability range.
var probabilityBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.45, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

var (
	globalMetrics *Metrics
	metricsMu     sync.Mutex
)

// NewMetrics creates and registers all collectors on reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	}

	return &Metrics{
		DiscoveryRunsTotal: counter("discovery", "runs_total",
			"Total number of discovery runs by final status", "status"),
		DiscoveryDuration: histogram("discovery", "duration_seconds",
			"Duration of discovery runs in seconds", defaultBuckets, "status"),
		StocksAnalyzedTotal: counter("discovery", "stocks_analyzed_total",
			"Total number of stocks fully analyzed", "source"),
		StockSkippedTotal: counter("discovery", "stocks_skipped_total",
			"Total number of stocks dropped from a batch", "reason"),
		VerdictBucketsTotal: counter("verdict", "bucket_total",
			"Total number of verdicts by bucket", "bucket"),
		VerdictProbability: histogram("verdict", "probability",
			"Distribution of multibagger probabilities", probabilityBuckets, "bucket"),
		AnalysisDuration: histogram("analysis", "duration_seconds",
			"Duration of single stock analysis in seconds", defaultBuckets, "symbol", "status"),
		EnrichmentResultTotal: counter("enrichment", "results_total",
			"Enrichment attempts by provider and outcome", "provider", "outcome"),

		AgentDuration: histogram("agent", "duration_seconds",
			"Duration of agent analysis in seconds", defaultBuckets, "agent_type"),
		AgentErrorsTotal: counter("agent", "errors_total",
			"Total number of agent errors", "agent_type", "error_type"),
		AgentScores: histogram("agent", "score",
			"Distribution of agent scores", agentScoreBuckets, "agent_type"),

		ExternalAPIRequestsTotal: counter("external_api", "requests_total",
			"Total number of external API requests", "service", "operation"),
		ExternalAPIErrorsTotal: counter("external_api", "errors_total",
			"Total number of external API errors", "service", "operation", "error_type"),
		ExternalAPIDuration: histogram("external_api", "duration_seconds",
			"Duration of external API calls in seconds", defaultBuckets, "service", "operation"),

		DBQueryDuration: histogram("database", "query_duration_seconds",
			"Duration of database queries in seconds", defaultBuckets, "operation", "table"),
		DBQueryTotal: counter("database", "queries_total",
			"Total number of database queries", "operation", "table"),
		DBErrorsTotal: counter("database", "errors_total",
			"Total number of database errors", "operation", "table"),

		HTTPRequestsTotal: counter("http", "requests_total",
			"Total number of HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: histogram("http", "request_duration_seconds",
			"Duration of HTTP requests in seconds", defaultBuckets, "method", "path"),
		HTTPResponseSize: histogram("http", "response_size_bytes",
			"Size of HTTP responses in bytes", prometheus.ExponentialBuckets(100, 10, 6), "method", "path"),

		CircuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
		}, []string{"service"}),
		CircuitBreakerTrips: counter("circuit_breaker", "trips_total",
			"Total number of circuit breaker trips", "service"),
	}
}

// InitMetrics registers the global metrics on the default registerer.
func InitMetrics() *Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = NewMetrics(nil)
	}
	return globalMetrics
}

// GetMetrics returns the global metrics, initializing them on first use.
func GetMetrics() *Metrics {
	return InitMetrics()
}

// RecordDiscoveryRun records a finished discovery batch.
func (m *Metrics) RecordDiscoveryRun(status string, duration time.Duration) {
	m.DiscoveryRunsTotal.WithLabelValues(status).Inc()
	m.DiscoveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStockAnalyzed counts a stock that produced a full agent bundle.
func (m *Metrics) RecordStockAnalyzed(source string) {
	m.StocksAnalyzedTotal.WithLabelValues(source).Inc()
}

// RecordStockSkipped counts a stock dropped from a batch.
func (m *Metrics) RecordStockSkipped(reason string) {
	m.StockSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordVerdict records the bucket and probability of a synthesized verdict.
func (m *Metrics) RecordVerdict(bucket string, probability float64) {
	m.VerdictBucketsTotal.WithLabelValues(bucket).Inc()
	m.VerdictProbability.WithLabelValues(bucket).Observe(probability)
}

// RecordAnalysisDuration records the time taken to analyze a single symbol.
func (m *Metrics) RecordAnalysisDuration(symbol, status string, duration time.Duration) {
	m.AnalysisDuration.WithLabelValues(symbol, status).Observe(duration.Seconds())
}

// RecordEnrichment records the outcome of one enrichment provider attempt.
func (m *Metrics) RecordEnrichment(provider, outcome string) {
	m.EnrichmentResultTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordAgentDuration(agentType string, duration time.Duration) {
	m.AgentDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

func (m *Metrics) RecordAgentError(agentType, errorType string) {
	m.AgentErrorsTotal.WithLabelValues(agentType, errorType).Inc()
}

func (m *Metrics) RecordAgentScore(agentType string, score float64) {
	m.AgentScores.WithLabelValues(agentType).Observe(score)
}

func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query and its latency.
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer measures an operation from creation until one of its Observe methods.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

func (m *Metrics) NewTimer() *Timer {
	return &Timer{start: time.Now(), metrics: m}
}

func (t *Timer) ObserveDiscovery(status string) {
	t.metrics.RecordDiscoveryRun(status, time.Since(t.start))
}

func (t *Timer) ObserveAnalysis(symbol, status string) {
	t.metrics.RecordAnalysisDuration(symbol, status, time.Since(t.start))
}

func (t *Timer) ObserveAgent(agentType string) {
	t.metrics.RecordAgentDuration(agentType, time.Since(t.start))
}

func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
