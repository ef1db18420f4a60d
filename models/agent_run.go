package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentRun is the audit record of one agent scoring one symbol.
type AgentRun struct {
	ID           uuid.UUID      `json:"id"`
	DiscoveryID  *uuid.UUID     `json:"discovery_id,omitempty"`
	AgentType    AgentType      `json:"agent_type"`
	Symbol       string         `json:"symbol"`
	Status       AgentRunStatus `json:"status"`
	Score        *float64       `json:"score,omitempty"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int            `json:"duration_ms"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

type AgentRunStatus string

const (
	AgentRunStatusRunning   AgentRunStatus = "running"
	AgentRunStatusCompleted AgentRunStatus = "completed"
	AgentRunStatusFailed    AgentRunStatus = "failed"
)

// NewAgentRun starts a run for symbol; discoveryID may be nil for ad hoc analysis.
func NewAgentRun(agentType AgentType, symbol string) *AgentRun {
	return &AgentRun{
		ID:        uuid.New(),
		AgentType: agentType,
		Symbol:    symbol,
		Status:    AgentRunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Complete records a successful result.
func (r *AgentRun) Complete(result AgentResult) {
	score := result.Score
	r.Score = &score
	r.OutputData = result.Summary()
	r.finish(AgentRunStatusCompleted)
}

// Fail records err as the run outcome.
func (r *AgentRun) Fail(err error) {
	r.ErrorMessage = err.Error()
	r.finish(AgentRunStatusFailed)
}

func (r *AgentRun) finish(status AgentRunStatus) {
	end := time.Now()
	r.Status = status
	r.CompletedAt = &end
	r.DurationMs = int(end.Sub(r.StartedAt).Milliseconds())
}
