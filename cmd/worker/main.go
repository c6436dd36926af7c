package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fleetgrid/fleetgrid/internal/app"
	"github.com/fleetgrid/fleetgrid/internal/compliance"
	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
	"github.com/fleetgrid/fleetgrid/internal/observability"
	"github.com/fleetgrid/fleetgrid/internal/platform/cache"
	"github.com/fleetgrid/fleetgrid/internal/platform/db"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
	"github.com/fleetgrid/fleetgrid/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	prefBlobs := shared.NewBlobStore(redisClient, "notifprefs", notifications.PrefStoreVersion)
	locker := shared.NewLocker(redisClient)
	metrics := observability.NewMetrics()

	notifRepo := notifications.NewRepository(pool)
	prefStore := notifications.NewPrefStore(prefBlobs, logger)
	dispatcher := notifications.NewDispatcher(notifRepo, prefStore, jobClient, logger)

	tenantsRepo := tenants.NewRepository(pool, auditLogger)
	tenantsService := tenants.NewService(tenantsRepo, idempotencyStore, auditLogger, dispatcher, metrics, logger, cfg.TrialDuration)

	complianceRepo := compliance.NewRepository(pool)
	complianceService := compliance.NewService(complianceRepo, equipment.NewRepository(pool), dispatcher, metrics, logger)

	mailer := jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.HandleSendEmail},
			{Type: jobs.TaskTrialSweep, Handler: jobs.NewTrialSweepHandler(tenantsService, locker, logger)},
			{Type: jobs.TaskCertScan, Handler: jobs.NewCertScanHandler(complianceService, locker, cfg.CertLookahead, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewTrialSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: jobs.NewCertScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
