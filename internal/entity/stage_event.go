package entity

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// StageEventSourceFlow marks events reconstructed from the CRM's
	// per-deal flow history.
	StageEventSourceFlow = "flow_api"
	// StageEventSourceInferred marks events derived from deal snapshots
	// when the flow endpoint yields nothing.
	StageEventSourceInferred = "inferred"
)

// StageEvent is one entry in the append-only stage-transition log.
//
// The (DealID, StageID, EnteredAt) triple is the idempotency key: the
// upstream history endpoint is re-polled across syncs and returns
// overlapping ranges, so the same transition may be seen many times but
// must be stored exactly once.
//
// SnapshotExpectedCloseDate freezes the deal's expected close date at the
// moment it entered the milestone stage. The live field on the deal keeps
// mutating afterwards; the snapshot is what was promised when the clock
// started.
type StageEvent struct {
	ID                        int64           `json:"id"`
	DealID                    int             `json:"deal_id"`
	PipelineID                int             `json:"pipeline_id"`
	StageID                   int             `json:"stage_id"`
	EnteredAt                 time.Time       `json:"entered_at"`
	Source                    string          `json:"source"`
	SnapshotExpectedCloseDate *time.Time      `json:"snapshot_expected_close_date,omitempty"`
	Meta                      json.RawMessage `json:"meta,omitempty"`
}

type StageEventRepository interface {
	// Insert stores the event unless the (deal, stage, entered_at) key is
	// already present. Reports whether a row was actually written.
	Insert(ctx context.Context, ev *StageEvent) (bool, error)
	// ListByDeal returns all events for a deal ordered by entered_at asc.
	ListByDeal(ctx context.Context, dealID int) ([]*StageEvent, error)
	// ListEntered returns events entering stageID within the half-open
	// window [from, to) for deals owned by ownerID, ordered by entered_at asc.
	ListEntered(ctx context.Context, stageID, ownerID int, from, to time.Time) ([]*StageEvent, error)
}
