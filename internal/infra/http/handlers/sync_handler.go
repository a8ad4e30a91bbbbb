package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/infra/http/middleware"
	"github.com/xavierca1/funnel-sync/internal/infra/queue"
	"github.com/xavierca1/funnel-sync/internal/usecase"
)

type SyncRunner interface {
	Execute(ctx context.Context, input usecase.RunSyncInput) (*usecase.RunSyncOutput, error)
}

type SyncEnqueuer interface {
	PublishSyncRequest(ctx context.Context, req queue.SyncRequest) error
}

type SyncHandler struct {
	Runner   SyncRunner
	Enqueuer SyncEnqueuer
	Secret   string
	Log      *zap.Logger

	// running serializes direct triggers; a second concurrent run would
	// read the same stale watermark and double-process for nothing.
	running sync.Mutex
}

func NewSyncHandler(runner SyncRunner, enqueuer SyncEnqueuer, secret string, log *zap.Logger) *SyncHandler {
	return &SyncHandler{Runner: runner, Enqueuer: enqueuer, Secret: secret, Log: log}
}

// HandleRun runs a sync synchronously: POST /sync?mode=full|inc
func (h *SyncHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = usecase.ModeIncremental
	}
	if mode != usecase.ModeFull && mode != usecase.ModeIncremental {
		writeError(w, http.StatusBadRequest, "mode must be full or inc")
		return
	}

	if !h.running.TryLock() {
		writeError(w, http.StatusConflict, "a sync run is already in progress")
		return
	}
	defer h.running.Unlock()

	out, err := h.Runner.Execute(r.Context(), usecase.RunSyncInput{
		Mode:  mode,
		Owner: r.URL.Query().Get("owner"),
	})
	if err != nil {
		middleware.RecordSyncRun(mode, "error")
		h.Log.Error("sync run failed", zap.String("mode", mode), zap.Error(err))
		writeError(w, syncStatusCode(err), err.Error())
		return
	}

	middleware.RecordSyncRun(out.Mode, "ok")
	middleware.RecordSyncCounts(out.DealsProcessed, out.EventsInserted, out.HistoryFailures)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"mode":            out.Mode,
		"deals_processed": out.DealsProcessed,
		"target_user":     out.TargetUser,
	})
}

// HandleEnqueue queues a sync for the background worker: POST /sync/enqueue
func (h *SyncHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = usecase.ModeIncremental
	}

	req := queue.SyncRequest{
		ID:    uuid.New().String(),
		Mode:  mode,
		Owner: r.URL.Query().Get("owner"),
	}
	if err := h.Enqueuer.PublishSyncRequest(r.Context(), req); err != nil {
		h.Log.Error("failed to enqueue sync request", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not enqueue sync request")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": true,
		"id":     req.ID,
		"mode":   mode,
	})
}

func (h *SyncHandler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(auth, "Bearer ") == h.Secret
}

func syncStatusCode(err error) int {
	switch {
	case usecase.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case usecase.IsSourceError(err), errors.Is(err, usecase.ErrPageLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
