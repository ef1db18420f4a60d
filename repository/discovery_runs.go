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

const discoveryRunColumns = `id, run_at, criteria, symbols, filtered_out, report, report_path, duration_ms, status, error, created_at`

// CreateDiscoveryRun creates a new discovery run
func (r *Repository) CreateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "discovery_runs")

	criteriaJSON, err := json.Marshal(run.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	symbolsJSON, err := json.Marshal(run.Symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal symbols: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO discovery_runs (id, run_at, criteria, symbols, duration_ms, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.RunAt, criteriaJSON, symbolsJSON, run.DurationMs, run.Status, run.Error, run.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "discovery_runs")
		return fmt.Errorf("failed to create discovery run: %w", err)
	}

	return nil
}

// UpdateDiscoveryRun stores the outcome of a discovery run
func (r *Repository) UpdateDiscoveryRun(ctx context.Context, run *models.DiscoveryRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "discovery_runs")

	filteredJSON, err := json.Marshal(run.Filtered)
	if err != nil {
		return fmt.Errorf("failed to marshal filtered symbols: %w", err)
	}
	var reportJSON []byte
	if run.Report != nil {
		if reportJSON, err = json.Marshal(run.Report); err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, `
		UPDATE discovery_runs
		SET filtered_out = $2, report = $3, report_path = $4, duration_ms = $5, status = $6, error = $7
		WHERE id = $1
	`, run.ID, filteredJSON, reportJSON, run.ReportPath, run.DurationMs, run.Status, run.Error)

	if err != nil {
		metrics.RecordDBError("update", "discovery_runs")
		return fmt.Errorf("failed to update discovery run: %w", err)
	}

	return nil
}

// GetDiscoveryRun returns a discovery run by ID, or nil when it does not exist
func (r *Repository) GetDiscoveryRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "discovery_runs")

	run, err := scanDiscoveryRun(r.db.QueryRow(ctx, `SELECT `+discoveryRunColumns+` FROM discovery_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "discovery_runs")
		return nil, fmt.Errorf("failed to get discovery run: %w", err)
	}
	return run, nil
}

// GetLatestDiscoveryRun returns the most recent discovery run
func (r *Repository) GetLatestDiscoveryRun(ctx context.Context) (*models.DiscoveryRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "discovery_runs")

	run, err := scanDiscoveryRun(r.db.QueryRow(ctx, `
		SELECT `+discoveryRunColumns+`
		FROM discovery_runs
		ORDER BY run_at DESC
		LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "discovery_runs")
		return nil, fmt.Errorf("failed to get latest discovery run: %w", err)
	}
	return run, nil
}

// GetDiscoveryRunHistory returns recent discovery runs, newest first
func (r *Repository) GetDiscoveryRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "discovery_runs")

	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+discoveryRunColumns+`
		FROM discovery_runs
		ORDER BY run_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		metrics.RecordDBError("select", "discovery_runs")
		return nil, fmt.Errorf("failed to get discovery run history: %w", err)
	}
	defer rows.Close()

	runs := []models.DiscoveryRun{}
	for rows.Next() {
		run, err := scanDiscoveryRun(rows)
		if err != nil {
			metrics.RecordDBError("select", "discovery_runs")
			return nil, fmt.Errorf("failed to scan discovery run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func scanDiscoveryRun(row pgx.Row) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	var criteriaJSON, symbolsJSON, filteredJSON, reportJSON []byte

	err := row.Scan(&run.ID, &run.RunAt, &criteriaJSON, &symbolsJSON, &filteredJSON, &reportJSON,
		&run.ReportPath, &run.DurationMs, &run.Status, &run.Error, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(criteriaJSON, &run.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(symbolsJSON, &run.Symbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal symbols: %w", err)
	}
	if filteredJSON != nil {
		if err := json.Unmarshal(filteredJSON, &run.Filtered); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filtered symbols: %w", err)
		}
	}
	if reportJSON != nil {
		var report models.DiscoveryReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		run.Report = &report
	}
	return &run, nil
}
