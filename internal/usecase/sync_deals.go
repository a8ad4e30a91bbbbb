package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

const (
	ModeFull        = "full"
	ModeIncremental = "inc"

	dealPageSize = 100
	// maxDealOffset is a runaway-pagination guard, not a correctness bound.
	// Crossing it means the fetched set is incomplete and the run fails
	// with ErrPageLimit.
	maxDealOffset = 10000
)

// SyncDeals pulls deals for one owner (full or incremental by watermark),
// upserts the snapshots and reconstructs the stage-transition event log.
type SyncDeals struct {
	CRM      CRMGateway
	Deals    entity.DealRepository
	Events   entity.StageEventRepository
	SyncLogs entity.SyncLogRepository
	Source   string
	Log      *zap.Logger
}

func NewSyncDeals(
	crm CRMGateway,
	deals entity.DealRepository,
	events entity.StageEventRepository,
	syncLogs entity.SyncLogRepository,
	source string,
	log *zap.Logger,
) *SyncDeals {
	return &SyncDeals{CRM: crm, Deals: deals, Events: events, SyncLogs: syncLogs, Source: source, Log: log}
}

type SyncDealsInput struct {
	OwnerID int
	Mode    string
	Funnel  entity.FunnelStages
	// RunID is the in-flight sync log row; it is excluded from the
	// watermark lookup so a run never anchors on itself.
	RunID int64
}

type SyncDealsOutput struct {
	ModeUsed        string
	DealsProcessed  int
	EventsInserted  int
	HistoryFailures int
}

func (uc *SyncDeals) Execute(ctx context.Context, input SyncDealsInput) (*SyncDealsOutput, error) {
	deals, modeUsed, err := uc.fetch(ctx, input)
	if err != nil {
		return nil, err
	}

	out := &SyncDealsOutput{ModeUsed: modeUsed}

	for _, deal := range deals {
		if err := uc.Deals.Upsert(ctx, deal); err != nil {
			return nil, &StoreError{Op: "upsert deal", Err: err}
		}
		out.DealsProcessed++

		// History reconstruction is best-effort per deal: the flow endpoint
		// fails for individual deals routinely, and one bad deal must not
		// sink the batch.
		history, err := uc.CRM.StageHistory(ctx, deal.ID)
		if err != nil {
			out.HistoryFailures++
			uc.Log.Warn("stage history unavailable, skipping deal",
				zap.Int("deal_id", deal.ID), zap.Error(err))
			continue
		}

		for _, ev := range history {
			ev.DealID = deal.ID
			if ev.Source == "" {
				ev.Source = entity.StageEventSourceFlow
			}
			if ev.StageID == input.Funnel.MilestoneStageID && deal.ExpectedCloseDate != nil {
				// Freeze what was promised at the moment the clock started.
				// The live expected_close_date keeps being edited afterwards.
				d := *deal.ExpectedCloseDate
				ev.SnapshotExpectedCloseDate = &d
			}

			inserted, err := uc.Events.Insert(ctx, ev)
			if err != nil {
				return nil, &StoreError{Op: "insert stage event", Err: err}
			}
			if inserted {
				out.EventsInserted++
			}
		}
	}

	uc.Log.Info("deal sync finished",
		zap.String("mode", modeUsed),
		zap.Int("deals", out.DealsProcessed),
		zap.Int("events_inserted", out.EventsInserted),
		zap.Int("history_failures", out.HistoryFailures))
	return out, nil
}

func (uc *SyncDeals) fetch(ctx context.Context, input SyncDealsInput) ([]*entity.Deal, string, error) {
	if input.Mode == ModeFull {
		deals, err := uc.fetchAll(ctx, input.OwnerID)
		return deals, ModeFull, err
	}

	last, err := uc.SyncLogs.LastSuccessful(ctx, uc.Source, input.RunID)
	if err != nil {
		return nil, "", &StoreError{Op: "last successful sync log", Err: err}
	}
	if last == nil {
		// No watermark yet: incremental degrades to full.
		deals, err := uc.fetchAll(ctx, input.OwnerID)
		return deals, ModeFull, err
	}

	deals, err := uc.CRM.ListDealsSince(ctx, last.StartedAt, input.OwnerID)
	if err != nil {
		return nil, "", &SourceError{Op: "list deals since watermark", Err: err}
	}
	return deals, ModeIncremental, nil
}

func (uc *SyncDeals) fetchAll(ctx context.Context, ownerID int) ([]*entity.Deal, error) {
	var all []*entity.Deal
	for offset := 0; ; offset += dealPageSize {
		if offset > maxDealOffset {
			return nil, ErrPageLimit
		}
		page, err := uc.CRM.ListDeals(ctx, offset, dealPageSize, ownerID)
		if err != nil {
			return nil, &SourceError{Op: "list deals", Err: err}
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
	}
}
