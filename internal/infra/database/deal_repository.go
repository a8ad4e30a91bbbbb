package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type DealRepository struct {
	DB *sql.DB
}

func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{DB: db}
}

// Upsert overwrites the mutable snapshot fields. Identity columns (org_id,
// owner_id, pipeline_id, add_time) are fixed at creation and deliberately
// absent from the UPDATE clause.
func (r *DealRepository) Upsert(ctx context.Context, d *entity.Deal) error {
	query := `
		INSERT INTO pd_deals (
			id, title, org_id, org_name, owner_id, owner_name,
			pipeline_id, stage_id, status, add_time, update_time,
			won_time, expected_close_date, raw, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    org_name = EXCLUDED.org_name,
		    owner_name = EXCLUDED.owner_name,
		    stage_id = EXCLUDED.stage_id,
		    status = EXCLUDED.status,
		    update_time = EXCLUDED.update_time,
		    won_time = EXCLUDED.won_time,
		    expected_close_date = EXCLUDED.expected_close_date,
		    raw = EXCLUDED.raw,
		    updated_at = NOW()
	`
	_, err := r.DB.ExecContext(ctx, query,
		d.ID,
		d.Title,
		d.OrgID,
		d.OrgName,
		d.OwnerID,
		d.OwnerName,
		d.PipelineID,
		d.StageID,
		d.Status,
		d.AddTime,
		d.UpdateTime,
		nullTime(d.WonTime),
		nullTime(d.ExpectedCloseDate),
		nullJSON(d.Raw),
	)
	return err
}

func (r *DealRepository) FindByIDs(ctx context.Context, ids []int) ([]*entity.Deal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, title, COALESCE(org_id, 0), COALESCE(org_name, ''),
		       owner_id, COALESCE(owner_name, ''), pipeline_id, stage_id,
		       status, add_time, update_time, won_time, expected_close_date
		FROM pd_deals
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []*entity.Deal
	for rows.Next() {
		var d entity.Deal
		var wonTime, expectedClose sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.Title, &d.OrgID, &d.OrgName,
			&d.OwnerID, &d.OwnerName, &d.PipelineID, &d.StageID,
			&d.Status, &d.AddTime, &d.UpdateTime, &wonTime, &expectedClose,
		); err != nil {
			return nil, err
		}
		if wonTime.Valid {
			t := wonTime.Time
			d.WonTime = &t
		}
		if expectedClose.Valid {
			t := expectedClose.Time
			d.ExpectedCloseDate = &t
		}
		deals = append(deals, &d)
	}
	return deals, rows.Err()
}
