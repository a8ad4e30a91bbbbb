package entity

import (
	"context"
	"encoding/json"
	"time"
)

const (
	DealStatusOpen = "open"
	DealStatusWon  = "won"
	DealStatusLost = "lost"
)

// Deal is a mirrored CRM deal snapshot. A deal is created on first sync
// observation and mutated on every later sync that sees it; it is never
// deleted (status moves to won/lost instead).
//
// Identity fields (ID, OrgID, OwnerID, PipelineID) are fixed at creation.
// The rest overwrite on every upsert. Raw holds the full upstream payload
// for audit/replay and is never read by the metrics engine.
type Deal struct {
	ID                int             `json:"id"`
	Title             string          `json:"title"`
	OrgID             int             `json:"org_id"`
	OrgName           string          `json:"org_name"`
	OwnerID           int             `json:"owner_id"`
	OwnerName         string          `json:"owner_name"`
	PipelineID        int             `json:"pipeline_id"`
	StageID           int             `json:"stage_id"`
	Status            string          `json:"status"`
	AddTime           time.Time       `json:"add_time"`
	UpdateTime        time.Time       `json:"update_time"`
	WonTime           *time.Time      `json:"won_time,omitempty"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

type DealRepository interface {
	Upsert(ctx context.Context, d *Deal) error
	// FindByIDs returns the deals that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []int) ([]*Deal, error)
}
