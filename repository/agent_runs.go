package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"multibagger/models"
	"multibagger/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const agentRunColumns = `id, discovery_id, agent_type, symbol, status, score, output_data, error_message, duration_ms, started_at, completed_at`

// CreateAgentRun creates a new agent run record
func (r *Repository) CreateAgentRun(ctx context.Context, run *models.AgentRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "agent_runs")

	_, err := r.db.Exec(ctx, `
		INSERT INTO agent_runs (id, discovery_id, agent_type, symbol, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.DiscoveryID, run.AgentType, run.Symbol, run.Status, run.StartedAt)

	if err != nil {
		metrics.RecordDBError("insert", "agent_runs")
		return fmt.Errorf("failed to create agent run: %w", err)
	}

	return nil
}

// UpdateAgentRun records the outcome of an agent run
func (r *Repository) UpdateAgentRun(ctx context.Context, run *models.AgentRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "agent_runs")

	outputData, err := json.Marshal(run.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal agent output: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE agent_runs
		SET status = $2, score = $3, output_data = $4, error_message = $5, duration_ms = $6, completed_at = $7
		WHERE id = $1
	`, run.ID, run.Status, run.Score, outputData, run.ErrorMessage, run.DurationMs, run.CompletedAt)

	if err != nil {
		metrics.RecordDBError("update", "agent_runs")
		return fmt.Errorf("failed to update agent run: %w", err)
	}

	return nil
}

// GetAgentRun returns a single agent run by ID, or nil when it does not exist
func (r *Repository) GetAgentRun(ctx context.Context, id uuid.UUID) (*models.AgentRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "agent_runs")

	row := r.db.QueryRow(ctx, `SELECT `+agentRunColumns+` FROM agent_runs WHERE id = $1`, id)
	run, err := scanAgentRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "agent_runs")
		return nil, fmt.Errorf("failed to query agent run: %w", err)
	}
	return run, nil
}

// GetAgentRuns returns agent runs with optional filtering by agent type
func (r *Repository) GetAgentRuns(ctx context.Context, agentType models.AgentType, limit int) ([]models.AgentRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	if agentType == "" {
		return r.queryAgentRuns(ctx, `
			SELECT `+agentRunColumns+`
			FROM agent_runs
			ORDER BY started_at DESC
			LIMIT $1
		`, limit)
	}
	return r.queryAgentRuns(ctx, `
		SELECT `+agentRunColumns+`
		FROM agent_runs
		WHERE agent_type = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, agentType, limit)
}

// GetRecentRunsForSymbol returns recent agent runs for a specific symbol
func (r *Repository) GetRecentRunsForSymbol(ctx context.Context, symbol string, limit int) ([]models.AgentRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	return r.queryAgentRuns(ctx, `
		SELECT `+agentRunColumns+`
		FROM agent_runs
		WHERE symbol = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, symbol, limit)
}

func (r *Repository) queryAgentRuns(ctx context.Context, sql string, args ...any) ([]models.AgentRun, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "agent_runs")

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		metrics.RecordDBError("select", "agent_runs")
		return nil, fmt.Errorf("failed to query agent runs: %w", err)
	}
	defer rows.Close()

	runs := []models.AgentRun{}
	for rows.Next() {
		run, err := scanAgentRun(rows)
		if err != nil {
			metrics.RecordDBError("select", "agent_runs")
			return nil, fmt.Errorf("failed to scan agent run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanAgentRun(row pgx.Row) (*models.AgentRun, error) {
	var run models.AgentRun
	var outputData []byte
	var errorMessage *string
	var durationMs *int

	err := row.Scan(&run.ID, &run.DiscoveryID, &run.AgentType, &run.Symbol, &run.Status, &run.Score,
		&outputData, &errorMessage, &durationMs, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	if errorMessage != nil {
		run.ErrorMessage = *errorMessage
	}
	if durationMs != nil {
		run.DurationMs = *durationMs
	}
	if outputData != nil {
		if err := json.Unmarshal(outputData, &run.OutputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent output: %w", err)
		}
	}
	return &run, nil
}
