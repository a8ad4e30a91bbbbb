package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
	"github.com/xavierca1/funnel-sync/internal/usecase"
)

type MetricsComputer interface {
	Compute(ctx context.Context, ownerID int, funnel entity.FunnelStages, from, to time.Time) (*entity.MetricsResult, error)
	Trend(ctx context.Context, ownerID int, funnel entity.FunnelStages, from, to time.Time) ([]entity.TrendPoint, error)
}

type FunnelResolver interface {
	Execute(ctx context.Context, roles usecase.FunnelRoles) (entity.FunnelStages, error)
	Owner(ctx context.Context, name string) (*entity.User, error)
}

type MetricsHandler struct {
	Compute      MetricsComputer
	Resolve      FunnelResolver
	Cache        entity.MetricsCacheRepository
	Roles        usecase.FunnelRoles
	DefaultOwner string
	Loc          *time.Location
	Log          *zap.Logger
}

func NewMetricsHandler(
	compute MetricsComputer,
	resolve FunnelResolver,
	cache entity.MetricsCacheRepository,
	roles usecase.FunnelRoles,
	defaultOwner string,
	loc *time.Location,
	log *zap.Logger,
) *MetricsHandler {
	return &MetricsHandler{
		Compute:      compute,
		Resolve:      resolve,
		Cache:        cache,
		Roles:        roles,
		DefaultOwner: defaultOwner,
		Loc:          loc,
		Log:          log,
	}
}

// HandleMetrics serves GET /pm/metrics?from&to&ownerName. The cache holds
// the aggregate only; trend is recomputed on every request, hit or miss.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ownerID, funnel, from, to, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	cached, err := h.Cache.Get(ctx, ownerID, from, to)
	if err != nil {
		h.Log.Error("metrics cache read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read metrics cache")
		return
	}

	if cached != nil {
		trend, err := h.Compute.Trend(ctx, ownerID, funnel, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to calculate trend")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"launchPct":     cached.LaunchPct,
			"signedCount":   cached.SignedCount,
			"launchedCount": cached.LaunchedCount,
			"missedPct":     cached.MissedPct,
			"missedCount":   cached.MissedCount,
			"avgStageDays":  cached.AvgStageDays,
			"trend":         trend,
		})
		return
	}

	result, err := h.Compute.Compute(ctx, ownerID, funnel, from, to)
	if err != nil {
		// A failed computation is never cached: caching an empty result
		// would mask a misconfiguration on all future reads.
		h.Log.Error("metrics computation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to calculate metrics")
		return
	}

	if err := h.Cache.Put(ctx, &entity.MetricsCache{
		OwnerID:       ownerID,
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
		h.Log.Warn("metrics cache write failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"launchPct":     result.LaunchPct,
		"signedCount":   result.SignedCount,
		"launchedCount": result.LaunchedCount,
		"missedPct":     result.MissedPct,
		"missedCount":   result.MissedCount,
		"avgStageDays":  result.AvgStageDays,
		"trend":         result.Trend,
	})
}

// HandleOverdue serves GET /pm/overdue?from&to&ownerName with the full
// missed-deadline rows. Never cached.
func (h *MetricsHandler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	ownerID, funnel, from, to, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Compute.Compute(r.Context(), ownerID, funnel, from, to)
	if err != nil {
		h.Log.Error("overdue computation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get overdue deals")
		return
	}

	writeJSON(w, http.StatusOK, result.Overdue)
}

func (h *MetricsHandler) resolveRequest(w http.ResponseWriter, r *http.Request) (int, entity.FunnelStages, time.Time, time.Time, bool) {
	var zero entity.FunnelStages

	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" || toStr == "" {
		writeError(w, http.StatusBadRequest, "from and to dates are required")
		return 0, zero, time.Time{}, time.Time{}, false
	}

	from, err := parseWindowTime(fromStr, h.Loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return 0, zero, time.Time{}, time.Time{}, false
	}
	to, err := parseWindowTime(toStr, h.Loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return 0, zero, time.Time{}, time.Time{}, false
	}

	ownerName := q.Get("ownerName")
	if ownerName == "" {
		ownerName = h.DefaultOwner
	}

	ctx := r.Context()
	owner, err := h.Resolve.Owner(ctx, ownerName)
	if err != nil {
		if usecase.IsConfigError(err) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "failed to resolve owner")
		}
		return 0, zero, time.Time{}, time.Time{}, false
	}

	funnel, err := h.Resolve.Execute(ctx, h.Roles)
	if err != nil {
		if usecase.IsConfigError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "failed to resolve funnel stages")
		}
		return 0, zero, time.Time{}, time.Time{}, false
	}

	return owner.ID, funnel, from, to, true
}

// parseWindowTime accepts a plain date (midnight in the operating timezone)
// or RFC3339.
func parseWindowTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
