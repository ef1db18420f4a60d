package models

import (
	"time"

	"github.com/google/uuid"
)

// Disclaimer is attached to every report.
const Disclaimer = "For research & learning only. Not financial advice."

// AnalysisDateLayout formats AnalysisSummary.AnalysisDate.
const AnalysisDateLayout = "2006-01-02 15:04:05"

// Report errors for batches that produced nothing.
const (
	ErrNoStocksFound  = "No stocks found for analysis"
	ErrAnalysisFailed = "Analysis failed"
)

type Bucket string

const (
	BucketHighProbability Bucket = "high_probability"
	BucketWatchlist       Bucket = "early_watchlist"
	BucketRejected        Bucket = "rejected"
)

// DetailedScores are the raw agent outputs behind a verdict.
type DetailedScores struct {
	FundamentalScore float64 `json:"fundamental_score"`
	ManagementScore  float64 `json:"management_score"`
	TechnicalStage   string  `json:"technical_stage"`
	SmartMoneyScore  float64 `json:"smart_money_score"`
	PolicyStrength   string  `json:"policy_strength"`
}

// StockVerdict is the synthesized outcome for one stock.
type StockVerdict struct {
	Symbol            string         `json:"symbol"`
	Sector            string         `json:"sector"`
	MarketCap         string         `json:"market_cap"`
	Probability       float64        `json:"multibagger_probability"`
	Bucket            Bucket         `json:"bucket"`
	ExpectedTimeframe string         `json:"expected_timeframe"`
	KeyTriggers       []string       `json:"key_triggers"`
	MajorRisks        []string       `json:"major_risks"`
	AgentConsensus    string         `json:"agent_consensus"`
	DetailedScores    DetailedScores `json:"detailed_scores"`
}

// AnalysisSummary counts the outcome of a synthesis. TotalStocksAnalyzed
// counts stocks that produced a verdict; RejectedCount is the full rejected
// bucket size even though the report lists at most ten.
type AnalysisSummary struct {
	TotalStocksAnalyzed int    `json:"total_stocks_analyzed"`
	HighConvictionCount int    `json:"high_conviction_count"`
	WatchlistCount      int    `json:"watchlist_count"`
	RejectedCount       int    `json:"rejected_count"`
	HardRejectedCount   int    `json:"hard_rejected_count"`
	SkippedCount        int    `json:"skipped_count"`
	AnalysisDate        string `json:"analysis_date"`
	Error               string `json:"error,omitempty"`
}

// DiscoveryReport is the ranked, bucketed result of one synthesis.
type DiscoveryReport struct {
	HighProbability []StockVerdict  `json:"high_probability_multibaggers"`
	EarlyWatchlist  []StockVerdict  `json:"early_watchlist"`
	RejectedStocks  []StockVerdict  `json:"rejected_stocks"`
	Summary         AnalysisSummary `json:"analysis_summary"`
	Disclaimer      string          `json:"disclaimer"`
}

// NewEmptyReport returns a report with empty buckets and errMsg recorded.
func NewEmptyReport(errMsg string, now time.Time) DiscoveryReport {
	return DiscoveryReport{
		HighProbability: []StockVerdict{},
		EarlyWatchlist:  []StockVerdict{},
		RejectedStocks:  []StockVerdict{},
		Summary: AnalysisSummary{
			AnalysisDate: now.Format(AnalysisDateLayout),
			Error:        errMsg,
		},
		Disclaimer: Disclaimer,
	}
}

// Verdicts returns every listed verdict in bucket order.
func (r DiscoveryReport) Verdicts() []StockVerdict {
	out := make([]StockVerdict, 0, len(r.HighProbability)+len(r.EarlyWatchlist)+len(r.RejectedStocks))
	out = append(out, r.HighProbability...)
	out = append(out, r.EarlyWatchlist...)
	out = append(out, r.RejectedStocks...)
	return out
}

// Find returns the verdict for symbol from any bucket.
func (r DiscoveryReport) Find(symbol string) (StockVerdict, bool) {
	for _, v := range r.Verdicts() {
		if v.Symbol == symbol {
			return v, true
		}
	}
	return StockVerdict{}, false
}

// VerdictRecord is a verdict persisted against the discovery run that produced it.
type VerdictRecord struct {
	ID        uuid.UUID    `json:"id"`
	RunID     uuid.UUID    `json:"run_id"`
	Verdict   StockVerdict `json:"verdict"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewVerdictRecord(runID uuid.UUID, v StockVerdict) *VerdictRecord {
	return &VerdictRecord{
		ID:        uuid.New(),
		RunID:     runID,
		Verdict:   v,
		CreatedAt: time.Now(),
	}
}
