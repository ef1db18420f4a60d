package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"multibagger/models"
)

// RunStore persists discovery runs.
type RunStore interface {
	CreateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error
	UpdateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error
	GetDiscoveryRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error)
	GetLatestDiscoveryRun(ctx context.Context) (*models.DiscoveryRun, error)
	GetDiscoveryRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error)
}

// VerdictStore persists the per-stock verdicts of a run.
type VerdictStore interface {
	SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []models.StockVerdict) error
	GetVerdictsForRun(ctx context.Context, runID uuid.UUID) ([]models.VerdictRecord, error)
	GetVerdictHistory(ctx context.Context, symbol string, limit int) ([]models.VerdictRecord, error)
}

// AgentRunStore is the audit trail of individual agent executions.
type AgentRunStore interface {
	CreateAgentRun(ctx context.Context, run *models.AgentRun) error
	UpdateAgentRun(ctx context.Context, run *models.AgentRun) error
	GetAgentRun(ctx context.Context, id uuid.UUID) (*models.AgentRun, error)
	GetAgentRuns(ctx context.Context, agentType models.AgentType, limit int) ([]models.AgentRun, error)
	GetRecentRunsForSymbol(ctx context.Context, symbol string, limit int) ([]models.AgentRun, error)
}

// SnapshotStore caches assembled snapshots with an expiry.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error)
	SetSnapshot(ctx context.Context, snapshot *models.StockSnapshot, ttl time.Duration) error
	InvalidateSnapshot(ctx context.Context, symbol string) error
	CleanExpiredSnapshots(ctx context.Context) (int64, error)
}

// Store is everything *Repository provides.
type Store interface {
	RunStore
	VerdictStore
	AgentRunStore
	SnapshotStore

	Migrate(ctx context.Context) error
	Health(ctx context.Context) error
	Close()
}

var _ Store = (*Repository)(nil)
