package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type MetricsCacheRepository struct {
	DB *sql.DB
}

func NewMetricsCacheRepository(db *sql.DB) *MetricsCacheRepository {
	return &MetricsCacheRepository{DB: db}
}

func (r *MetricsCacheRepository) Get(ctx context.Context, ownerID int, from, to time.Time) (*entity.MetricsCache, error) {
	query := `
		SELECT owner_id, from_date, to_date, signed_count, launched_count,
		       launch_pct, missed_count, missed_pct, avg_stage_days, computed_at
		FROM pm_metrics_cache
		WHERE owner_id = $1 AND from_date = $2 AND to_date = $3
	`
	var c entity.MetricsCache
	err := r.DB.QueryRowContext(ctx, query, ownerID, from, to).Scan(
		&c.OwnerID, &c.FromDate, &c.ToDate, &c.SignedCount, &c.LaunchedCount,
		&c.LaunchPct, &c.MissedCount, &c.MissedPct, &c.AvgStageDays, &c.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *MetricsCacheRepository) Put(ctx context.Context, c *entity.MetricsCache) error {
	query := `
		INSERT INTO pm_metrics_cache (
			owner_id, from_date, to_date, signed_count, launched_count,
			launch_pct, missed_count, missed_pct, avg_stage_days, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, from_date, to_date) DO UPDATE
		SET signed_count = EXCLUDED.signed_count,
		    launched_count = EXCLUDED.launched_count,
		    launch_pct = EXCLUDED.launch_pct,
		    missed_count = EXCLUDED.missed_count,
		    missed_pct = EXCLUDED.missed_pct,
		    avg_stage_days = EXCLUDED.avg_stage_days,
		    computed_at = EXCLUDED.computed_at
	`
	_, err := r.DB.ExecContext(ctx, query,
		c.OwnerID, c.FromDate, c.ToDate, c.SignedCount, c.LaunchedCount,
		c.LaunchPct, c.MissedCount, c.MissedPct, c.AvgStageDays, c.ComputedAt,
	)
	return err
}
