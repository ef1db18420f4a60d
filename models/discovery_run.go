package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscoveryRunStatus string

const (
	DiscoveryRunStatusRunning   DiscoveryRunStatus = "running"
	DiscoveryRunStatusCompleted DiscoveryRunStatus = "completed"
	DiscoveryRunStatusFailed    DiscoveryRunStatus = "failed"
)

// DiscoveryCriteria records the filters applied to a discovery run.
type DiscoveryCriteria struct {
	MaxStocks          int     `json:"max_stocks"`
	MaxMarketCapCrores float64 `json:"max_market_cap_crores"`
	Source             string  `json:"source"` // request, stock set name or index
}

// DiscoveryRun is a single execution of the discovery workflow.
type DiscoveryRun struct {
	ID         uuid.UUID          `json:"id"`
	RunAt      time.Time          `json:"run_at"`
	Criteria   DiscoveryCriteria  `json:"criteria"`
	Symbols    []string           `json:"symbols"`
	Filtered   []string           `json:"filtered_out,omitempty"`
	Report     *DiscoveryReport   `json:"report,omitempty"`
	ReportPath string             `json:"report_path,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	Status     DiscoveryRunStatus `json:"status"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewDiscoveryRun(criteria DiscoveryCriteria, symbols []string) *DiscoveryRun {
	now := time.Now()
	return &DiscoveryRun{
		ID:        uuid.New(),
		RunAt:     now,
		Criteria:  criteria,
		Symbols:   symbols,
		Status:    DiscoveryRunStatusRunning,
		CreatedAt: now,
	}
}

// Complete marks the run completed with its report.
func (r *DiscoveryRun) Complete(durationMs int64, report DiscoveryReport) {
	r.Status = DiscoveryRunStatusCompleted
	r.DurationMs = durationMs
	r.Report = &report
}

// Fail marks the run failed.
func (r *DiscoveryRun) Fail(err string, durationMs int64) {
	r.Status = DiscoveryRunStatusFailed
	r.Error = err
	r.DurationMs = durationMs
}

func (r *DiscoveryRun) IsRunning() bool {
	return r.Status == DiscoveryRunStatusRunning
}

func (r *DiscoveryRun) IsCompleted() bool {
	return r.Status == DiscoveryRunStatusCompleted
}

func (r *DiscoveryRun) IsFailed() bool {
	return r.Status == DiscoveryRunStatusFailed
}

// Counts returns high, watchlist and rejected counts from the report.
func (r *DiscoveryRun) Counts() (high, watchlist, rejected int) {
	if r.Report == nil {
		return 0, 0, 0
	}
	s := r.Report.Summary
	return s.HighConvictionCount, s.WatchlistCount, s.RejectedCount
}
