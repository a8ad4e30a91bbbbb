package usecase

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

// RunSync sequences a whole sync run: sync-log bracket, reference sync,
// owner and funnel resolution, deal sync, metrics recompute, cache write.
// The log row is created optimistically as ok and always finalized, success
// or failure, because the next incremental run's watermark hangs off it.
type RunSync struct {
	References *SyncReferences
	Resolve    *ResolveFunnel
	Deals      *SyncDeals
	Metrics    *Metrics
	SyncLogs   entity.SyncLogRepository
	Cache      entity.MetricsCacheRepository
	Alerts     AlertSender // optional

	Roles       FunnelRoles
	TargetOwner string
	ReportStart time.Time
	Source      string
	Log         *zap.Logger
}

type RunSyncInput struct {
	Mode string
	// Owner overrides the configured target owner when set.
	Owner string
}

type RunSyncOutput struct {
	Mode            string `json:"mode"`
	DealsProcessed  int    `json:"deals_processed"`
	EventsInserted  int    `json:"events_inserted"`
	HistoryFailures int    `json:"history_failures"`
	TargetUser      string `json:"target_user"`
}

func (uc *RunSync) Execute(ctx context.Context, input RunSyncInput) (*RunSyncOutput, error) {
	now := time.Now()
	logRow := &entity.SyncLog{
		Source:     uc.Source,
		StartedAt:  now,
		FinishedAt: now,
		Status:     entity.SyncStatusOK,
	}
	if err := uc.SyncLogs.Create(ctx, logRow); err != nil {
		return nil, &StoreError{Op: "create sync log", Err: err}
	}

	out, err := uc.run(ctx, input, logRow.ID)
	if err != nil {
		uc.finalize(ctx, logRow.ID, entity.SyncStatusError, map[string]any{
			"error": err.Error(),
			"mode":  input.Mode,
		})
		uc.alert(err)
		return nil, err
	}

	uc.finalize(ctx, logRow.ID, entity.SyncStatusOK, map[string]any{
		"mode":             out.Mode,
		"deals_processed":  out.DealsProcessed,
		"events_inserted":  out.EventsInserted,
		"history_failures": out.HistoryFailures,
		"target_user":      out.TargetUser,
	})
	return out, nil
}

func (uc *RunSync) run(ctx context.Context, input RunSyncInput, runID int64) (*RunSyncOutput, error) {
	if err := uc.References.Execute(ctx); err != nil {
		return nil, err
	}

	ownerName := input.Owner
	if ownerName == "" {
		ownerName = uc.TargetOwner
	}
	owner, err := uc.Resolve.Owner(ctx, ownerName)
	if err != nil {
		return nil, err
	}

	funnel, err := uc.Resolve.Execute(ctx, uc.Roles)
	if err != nil {
		return nil, err
	}

	mode := input.Mode
	if mode != ModeFull {
		mode = ModeIncremental
	}
	synced, err := uc.Deals.Execute(ctx, SyncDealsInput{
		OwnerID: owner.ID,
		Mode:    mode,
		Funnel:  funnel,
		RunID:   runID,
	})
	if err != nil {
		return nil, err
	}

	// The reporting window runs from the deployment's effective start date
	// through now; its cache entry is what the dashboard reads first.
	from, to := uc.ReportStart, time.Now()
	result, err := uc.Metrics.Compute(ctx, owner.ID, funnel, from, to)
	if err != nil {
		return nil, err
	}

	if err := uc.Cache.Put(ctx, &entity.MetricsCache{
		OwnerID:       owner.ID,
		FromDate:      from,
		ToDate:        to,
		SignedCount:   result.SignedCount,
		LaunchedCount: result.LaunchedCount,
		LaunchPct:     result.LaunchPct,
		MissedCount:   result.MissedCount,
		MissedPct:     result.MissedPct,
		AvgStageDays:  result.AvgStageDays,
		ComputedAt:    time.Now(),
	}); err != nil {
		return nil, &StoreError{Op: "write metrics cache", Err: err}
	}

	uc.Log.Info("sync run finished",
		zap.String("mode", synced.ModeUsed),
		zap.String("owner", owner.Name),
		zap.Int("deals", synced.DealsProcessed))

	return &RunSyncOutput{
		Mode:            synced.ModeUsed,
		DealsProcessed:  synced.DealsProcessed,
		EventsInserted:  synced.EventsInserted,
		HistoryFailures: synced.HistoryFailures,
		TargetUser:      owner.Name,
	}, nil
}

func (uc *RunSync) finalize(ctx context.Context, id int64, status string, info map[string]any) {
	payload, _ := json.Marshal(info)
	if err := uc.SyncLogs.Finalize(ctx, id, status, payload); err != nil {
		// The row stays in its optimistic state; log loudly, the watermark
		// semantics of the next run depend on this table.
		uc.Log.Error("failed to finalize sync log", zap.Int64("sync_log_id", id), zap.Error(err))
	}
}

func (uc *RunSync) alert(runErr error) {
	if uc.Alerts == nil {
		return
	}
	if err := uc.Alerts.SendSyncFailure(uc.Source, runErr.Error()); err != nil {
		uc.Log.Warn("failure alert not delivered", zap.Error(err))
	}
}
