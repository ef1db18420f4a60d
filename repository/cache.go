package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"multibagger/models"
	"multibagger/observability"

	"github.com/jackc/pgx/v5"
)

// GetSnapshot returns the cached snapshot for symbol, or nil when there is
// no fresh entry.
func (r *Repository) GetSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "snapshot_cache")

	var data []byte
	// Let the database handle expiry check to avoid timezone issues
	err := r.db.QueryRow(ctx, `
		SELECT data FROM snapshot_cache
		WHERE symbol = $1 AND expires_at > NOW()
	`, symbol).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "snapshot_cache")
		return nil, fmt.Errorf("failed to query snapshot cache: %w", err)
	}

	var snapshot models.StockSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}
	return &snapshot, nil
}

// SetSnapshot stores a snapshot with a TTL, replacing any previous entry.
func (r *Repository) SetSnapshot(ctx context.Context, snapshot *models.StockSnapshot, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "snapshot_cache")

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO snapshot_cache (symbol, data, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (symbol)
		DO UPDATE SET data = EXCLUDED.data, expires_at = NOW() + make_interval(secs => $3), created_at = NOW()
	`, snapshot.Symbol, data, ttl.Seconds())

	if err != nil {
		metrics.RecordDBError("upsert", "snapshot_cache")
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	return nil
}

// InvalidateSnapshot removes the cached snapshot for a symbol
func (r *Repository) InvalidateSnapshot(ctx context.Context, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM snapshot_cache WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

// CleanExpiredSnapshots removes all expired cache entries
func (r *Repository) CleanExpiredSnapshots(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.db.Exec(ctx, `DELETE FROM snapshot_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}
