package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	dealsSyncedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deals_synced_total",
			Help: "Total number of deal snapshots processed",
		},
	)

	stageEventsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stage_events_inserted_total",
			Help: "Total number of new stage-transition events stored",
		},
	)

	historyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deal_history_failures_total",
			Help: "Total number of per-deal history lookups that were skipped",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

func RecordSyncRun(mode, status string) {
	syncRunsTotal.WithLabelValues(mode, status).Inc()
}

func RecordSyncCounts(deals, eventsInserted, historyFailures int) {
	dealsSyncedTotal.Add(float64(deals))
	stageEventsInsertedTotal.Add(float64(eventsInserted))
	historyFailuresTotal.Add(float64(historyFailures))
}
