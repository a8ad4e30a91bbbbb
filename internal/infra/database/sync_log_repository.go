package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type SyncLogRepository struct {
	DB *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{DB: db}
}

func (r *SyncLogRepository) Create(ctx context.Context, l *entity.SyncLog) error {
	query := `
		INSERT INTO sync_logs (source, started_at, finished_at, status, info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		l.Source, l.StartedAt, l.FinishedAt, l.Status, nullJSON(l.Info),
	).Scan(&l.ID)
}

func (r *SyncLogRepository) Finalize(ctx context.Context, id int64, status string, info json.RawMessage) error {
	query := `
		UPDATE sync_logs
		SET finished_at = NOW(), status = $2, info = $3
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id, status, nullJSON(info))
	return err
}

func (r *SyncLogRepository) LastSuccessful(ctx context.Context, source string, excludeID int64) (*entity.SyncLog, error) {
	query := `
		SELECT id, source, started_at, finished_at, status, COALESCE(info, 'null'::jsonb)
		FROM sync_logs
		WHERE source = $1 AND status = $2 AND id <> $3
		ORDER BY started_at DESC
		LIMIT 1
	`
	var l entity.SyncLog
	err := r.DB.QueryRowContext(ctx, query, source, entity.SyncStatusOK, excludeID).Scan(
		&l.ID, &l.Source, &l.StartedAt, &l.FinishedAt, &l.Status, &l.Info,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *SyncLogRepository) ListRecent(ctx context.Context, source string, limit int) ([]*entity.SyncLog, error) {
	query := `
		SELECT id, source, started_at, finished_at, status, COALESCE(info, 'null'::jsonb)
		FROM sync_logs
		WHERE source = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*entity.SyncLog
	for rows.Next() {
		var l entity.SyncLog
		if err := rows.Scan(&l.ID, &l.Source, &l.StartedAt, &l.FinishedAt, &l.Status, &l.Info); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
