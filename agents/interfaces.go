package agents

import (
	"context"

	"multibagger/enrichment"
	"multibagger/models"
)

// AgentRunRecorder persists the audit trail of agent executions.
type AgentRunRecorder interface {
	CreateAgentRun(ctx context.Context, run *models.AgentRun) error
	UpdateAgentRun(ctx context.Context, run *models.AgentRun) error
}

// Enricher adds qualitative insight to a fundamental analysis. Enrich always
// returns an insight, falling back to rules when no provider answers.
type Enricher interface {
	Enrich(ctx context.Context, prompt enrichment.Prompt) enrichment.Result
}
