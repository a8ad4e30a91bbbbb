package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type StageEventRepository struct {
	DB *sql.DB
}

func NewStageEventRepository(db *sql.DB) *StageEventRepository {
	return &StageEventRepository{DB: db}
}

// Insert relies on the (deal_id, stage_id, entered_at) unique constraint:
// ON CONFLICT DO NOTHING keeps the idempotency key honest even under
// concurrent writers, where a check-then-insert would race.
func (r *StageEventRepository) Insert(ctx context.Context, ev *entity.StageEvent) (bool, error) {
	query := `
		INSERT INTO pd_stage_events (
			deal_id, pipeline_id, stage_id, entered_at, source,
			snapshot_expected_close_date, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (deal_id, stage_id, entered_at) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query,
		ev.DealID,
		ev.PipelineID,
		ev.StageID,
		ev.EnteredAt,
		ev.Source,
		nullTime(ev.SnapshotExpectedCloseDate),
		nullJSON(ev.Meta),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *StageEventRepository) ListByDeal(ctx context.Context, dealID int) ([]*entity.StageEvent, error) {
	query := `
		SELECT id, deal_id, pipeline_id, stage_id, entered_at, source,
		       snapshot_expected_close_date
		FROM pd_stage_events
		WHERE deal_id = $1
		ORDER BY entered_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *StageEventRepository) ListEntered(ctx context.Context, stageID, ownerID int, from, to time.Time) ([]*entity.StageEvent, error) {
	query := `
		SELECT e.id, e.deal_id, e.pipeline_id, e.stage_id, e.entered_at, e.source,
		       e.snapshot_expected_close_date
		FROM pd_stage_events e
		JOIN pd_deals d ON d.id = e.deal_id
		WHERE e.stage_id = $1
		  AND d.owner_id = $2
		  AND e.entered_at >= $3
		  AND e.entered_at < $4
		ORDER BY e.entered_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, stageID, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*entity.StageEvent, error) {
	var events []*entity.StageEvent
	for rows.Next() {
		var ev entity.StageEvent
		var snapshot sql.NullTime
		if err := rows.Scan(
			&ev.ID, &ev.DealID, &ev.PipelineID, &ev.StageID,
			&ev.EnteredAt, &ev.Source, &snapshot,
		); err != nil {
			return nil, err
		}
		if snapshot.Valid {
			t := snapshot.Time
			ev.SnapshotExpectedCloseDate = &t
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
