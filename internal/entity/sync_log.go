package entity

import (
	"context"
	"encoding/json"
	"time"
)

const (
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// SyncLog is one row per sync run, append-only. The started_at of the last
// ok row is the watermark for the next incremental sync: anchoring on start
// rather than finish means a run that dies partway gets its window
// re-fetched, trading duplicate (idempotent) work for never missing an
// update.
type SyncLog struct {
	ID         int64           `json:"id"`
	Source     string          `json:"source"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     string          `json:"status"`
	Info       json.RawMessage `json:"info,omitempty"`
}

type SyncLogRepository interface {
	// Create inserts the row and fills in its ID.
	Create(ctx context.Context, l *SyncLog) error
	// Finalize stamps finished_at and overwrites status and info.
	Finalize(ctx context.Context, id int64, status string, info json.RawMessage) error
	// LastSuccessful returns the most recent ok row for source, excluding
	// excludeID (the in-flight run, which is created optimistically as ok
	// and must not become its own watermark). Returns nil when there is none.
	LastSuccessful(ctx context.Context, source string, excludeID int64) (*SyncLog, error)
	// ListRecent returns up to limit rows for source, newest first.
	ListRecent(ctx context.Context, source string, limit int) ([]*SyncLog, error)
}
