package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/config"
	"github.com/xavierca1/funnel-sync/internal/infra/database"
	"github.com/xavierca1/funnel-sync/internal/infra/http/handlers"
	"github.com/xavierca1/funnel-sync/internal/infra/http/middleware"
	"github.com/xavierca1/funnel-sync/internal/infra/integration/pipedrive"
	"github.com/xavierca1/funnel-sync/internal/infra/mail"
	"github.com/xavierca1/funnel-sync/internal/infra/queue"
	"github.com/xavierca1/funnel-sync/internal/shared"
	"github.com/xavierca1/funnel-sync/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := shared.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbitmq connection failed", zap.Error(err))
	}
	defer rabbitMQ.Conn.Close()
	defer rabbitMQ.Ch.Close()

	// 1. Repositories
	userRepo := database.NewUserRepository(db)
	pipelineRepo := database.NewPipelineRepository(db)
	stageRepo := database.NewStageRepository(db)
	dealRepo := database.NewDealRepository(db)
	eventRepo := database.NewStageEventRepository(db)
	cacheRepo := database.NewMetricsCacheRepository(db)
	syncLogRepo := database.NewSyncLogRepository(db)

	// 2. Gateways and adapters
	crm := pipedrive.NewClient(cfg.CRMBaseURL, cfg.CRMToken)
	producer := queue.NewProducer(rabbitMQ.Ch)

	var alerts usecase.AlertSender
	if cfg.MailHost != "" && cfg.AlertTo != "" {
		alerts = mail.NewAlertSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.AlertTo)
	}

	// 3. Use cases
	roles := usecase.FunnelRoles{
		Signed:      usecase.StageRole(cfg.Signed),
		Launched:    usecase.StageRole(cfg.Launched),
		Milestone:   usecase.StageRole(cfg.Milestone),
		DurationEnd: usecase.StageRole(cfg.DurationEnd),
	}

	references := usecase.NewSyncReferences(crm, userRepo, pipelineRepo, stageRepo, logger)
	resolve := usecase.NewResolveFunnel(userRepo, pipelineRepo, stageRepo)
	dealSync := usecase.NewSyncDeals(crm, dealRepo, eventRepo, syncLogRepo, cfg.Source, logger)
	metrics := usecase.NewMetrics(dealRepo, eventRepo, cfg.Timezone)

	runSync := &usecase.RunSync{
		References:  references,
		Resolve:     resolve,
		Deals:       dealSync,
		Metrics:     metrics,
		SyncLogs:    syncLogRepo,
		Cache:       cacheRepo,
		Alerts:      alerts,
		Roles:       roles,
		TargetOwner: cfg.TargetOwner,
		ReportStart: cfg.ReportStart,
		Source:      cfg.Source,
		Log:         logger,
	}

	// 4. Background worker draining queued sync requests, one at a time
	worker := queue.NewWorker(rabbitMQ.Ch, runSync, logger)
	go worker.Start(queue.QueueName)

	// 5. Handlers
	syncHandler := handlers.NewSyncHandler(runSync, producer, cfg.SyncSecret, logger)
	metricsHandler := handlers.NewMetricsHandler(metrics, resolve, cacheRepo, roles, cfg.TargetOwner, cfg.Timezone, logger)
	logsHandler := handlers.NewSyncLogsHandler(syncLogRepo, cfg.Source, logger)
	healthHandler := handlers.NewHealthHandler(db, rabbitMQ.Conn, cfg.CRMToken != "")

	// 6. Router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Post("/sync", syncHandler.HandleRun)
	r.Post("/sync/enqueue", syncHandler.HandleEnqueue)
	r.Get("/sync/logs", logsHandler.Handle)
	r.Get("/pm/metrics", metricsHandler.HandleMetrics)
	r.Get("/pm/overdue", metricsHandler.HandleOverdue)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	logger.Info("funnel-sync listening", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
