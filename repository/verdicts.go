package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"multibagger/models"
	"multibagger/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveVerdicts stores every verdict of a discovery run in one batch.
func (r *Repository) SaveVerdicts(ctx context.Context, runID uuid.UUID, verdicts []models.StockVerdict) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	if len(verdicts) == 0 {
		return nil
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "stock_verdicts")

	batch := &pgx.Batch{}
	for _, v := range verdicts {
		rec := models.NewVerdictRecord(runID, v)
		verdictJSON, err := json.Marshal(rec.Verdict)
		if err != nil {
			return fmt.Errorf("failed to marshal verdict for %s: %w", v.Symbol, err)
		}
		batch.Queue(`
			INSERT INTO stock_verdicts (id, run_id, symbol, bucket, probability, verdict, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, rec.RunID, v.Symbol, v.Bucket, v.Probability, verdictJSON, rec.CreatedAt)
	}

	results := r.sendBatch(ctx, batch)
	defer results.Close()
	for range verdicts {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBError("insert", "stock_verdicts")
			return fmt.Errorf("failed to save verdict: %w", err)
		}
	}
	return nil
}

// GetVerdictsForRun returns a run's verdicts ordered by probability.
func (r *Repository) GetVerdictsForRun(ctx context.Context, runID uuid.UUID) ([]models.VerdictRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	return r.queryVerdicts(ctx, `
		SELECT id, run_id, verdict, created_at
		FROM stock_verdicts
		WHERE run_id = $1
		ORDER BY probability DESC, created_at
	`, runID)
}

// GetVerdictHistory returns the most recent verdicts for a symbol.
func (r *Repository) GetVerdictHistory(ctx context.Context, symbol string, limit int) ([]models.VerdictRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return r.queryVerdicts(ctx, `
		SELECT id, run_id, verdict, created_at
		FROM stock_verdicts
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, symbol, limit)
}

func (r *Repository) queryVerdicts(ctx context.Context, sql string, args ...any) ([]models.VerdictRecord, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_verdicts")

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		metrics.RecordDBError("select", "stock_verdicts")
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	records := []models.VerdictRecord{}
	for rows.Next() {
		var rec models.VerdictRecord
		var verdictJSON []byte
		if err := rows.Scan(&rec.ID, &rec.RunID, &verdictJSON, &rec.CreatedAt); err != nil {
			metrics.RecordDBError("select", "stock_verdicts")
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if err := json.Unmarshal(verdictJSON, &rec.Verdict); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// batcher is implemented by both pgxpool.Pool and pgx.Tx.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (r *Repository) sendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	if tx, ok := r.db.(batcher); ok {
		return tx.SendBatch(ctx, b)
	}
	return r.pool.SendBatch(ctx, b)
}
