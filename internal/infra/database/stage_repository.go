package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type StageRepository struct {
	DB *sql.DB
}

func NewStageRepository(db *sql.DB) *StageRepository {
	return &StageRepository{DB: db}
}

func (r *StageRepository) Upsert(ctx context.Context, s *entity.Stage) error {
	query := `
		INSERT INTO pd_stages (id, pipeline_id, name, order_no, raw, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    order_no = EXCLUDED.order_no,
		    raw = EXCLUDED.raw,
		    updated_at = NOW()
	`
	_, err := r.DB.ExecContext(ctx, query, s.ID, s.PipelineID, s.Name, s.OrderNo, nullJSON(s.Raw))
	return err
}

func (r *StageRepository) FindByName(ctx context.Context, pipelineID int, name string) (*entity.Stage, error) {
	query := `
		SELECT id, pipeline_id, name, order_no
		FROM pd_stages
		WHERE pipeline_id = $1 AND LOWER(TRIM(name)) = LOWER(TRIM($2))
		LIMIT 1
	`
	var s entity.Stage
	err := r.DB.QueryRowContext(ctx, query, pipelineID, name).Scan(&s.ID, &s.PipelineID, &s.Name, &s.OrderNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
