package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type PipelineRepository struct {
	DB *sql.DB
}

func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{DB: db}
}

func (r *PipelineRepository) Upsert(ctx context.Context, p *entity.Pipeline) error {
	query := `
		INSERT INTO pd_pipelines (id, name, raw, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    raw = EXCLUDED.raw,
		    updated_at = NOW()
	`
	_, err := r.DB.ExecContext(ctx, query, p.ID, p.Name, nullJSON(p.Raw))
	return err
}

func (r *PipelineRepository) FindByName(ctx context.Context, name string) (*entity.Pipeline, error) {
	query := `
		SELECT id, name
		FROM pd_pipelines
		WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
		LIMIT 1
	`
	var p entity.Pipeline
	err := r.DB.QueryRowContext(ctx, query, name).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// nullJSON keeps empty raw payloads as SQL NULL instead of invalid jsonb.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
