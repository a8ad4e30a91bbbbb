package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

type SyncLogsHandler struct {
	SyncLogs entity.SyncLogRepository
	Source   string
	Log      *zap.Logger
}

func NewSyncLogsHandler(syncLogs entity.SyncLogRepository, source string, log *zap.Logger) *SyncLogsHandler {
	return &SyncLogsHandler{SyncLogs: syncLogs, Source: source, Log: log}
}

// Handle serves GET /sync/logs?source&limit, newest first.
func (h *SyncLogsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = h.Source
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	logs, err := h.SyncLogs.ListRecent(r.Context(), source, limit)
	if err != nil {
		h.Log.Error("failed to list sync logs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get sync logs")
		return
	}
	if logs == nil {
		logs = []*entity.SyncLog{}
	}

	writeJSON(w, http.StatusOK, logs)
}
