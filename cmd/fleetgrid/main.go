package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fleetgrid/fleetgrid/internal/app"
	"github.com/fleetgrid/fleetgrid/internal/auth"
	"github.com/fleetgrid/fleetgrid/internal/compliance"
	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
	"github.com/fleetgrid/fleetgrid/internal/observability"
	"github.com/fleetgrid/fleetgrid/internal/platform/cache"
	"github.com/fleetgrid/fleetgrid/internal/platform/db"
	"github.com/fleetgrid/fleetgrid/internal/projects"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
	"github.com/fleetgrid/fleetgrid/internal/users"
	"github.com/fleetgrid/fleetgrid/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "fleetgrid_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	prefBlobs := shared.NewBlobStore(redisClient, "notifprefs", notifications.PrefStoreVersion)
	snapshotBlobs := shared.NewBlobStore(redisClient, "eqsnapshots", compliance.SnapshotVersion)
	metrics := observability.NewMetrics()

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

	usersRepo := users.NewRepository(dbpool)

	var overrides roles.OverridePolicy = roles.NoOverride{}
	if cfg.RoleOverrides != "" {
		overrides = roles.NewConfigOverride(cfg.RoleOverrides)
	}
	resolver := roles.NewResolver(usersRepo, overrides, sessionManager, logger)
	rbac := roles.Middleware{Resolver: resolver, Logger: logger}

	notifRepo := notifications.NewRepository(dbpool)
	prefStore := notifications.NewPrefStore(prefBlobs, logger)
	dispatcher := notifications.NewDispatcher(notifRepo, prefStore, jobClient, logger)

	tenantsRepo := tenants.NewRepository(dbpool, auditLogger)
	tenantsService := tenants.NewService(tenantsRepo, idempotencyStore, auditLogger, dispatcher, metrics, logger, cfg.TrialDuration)

	gate := features.NewGate(cfg.AdminFeatureBypass, dispatcher, logger)

	equipmentRepo := equipment.NewRepository(dbpool)
	complianceRepo := compliance.NewRepository(dbpool)
	complianceService := compliance.NewService(complianceRepo, equipmentRepo, dispatcher, metrics, logger)
	tracker := compliance.NewTracker(snapshotBlobs, complianceService, dispatcher, logger)

	equipmentService := equipment.NewService(equipmentRepo, tenantsService, gate, tracker, logger)

	projectsRepo := projects.NewRepository(dbpool)
	projectsService := projects.NewService(projectsRepo, equipmentService, dispatcher, logger)

	usersService := users.NewService(usersRepo, tenantsService, gate, auditLogger, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(usersRepo, authRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		RBAC:                 rbac,
		AuthHandler:          auth.NewHandler(logger, authService, sessionManager),
		TenantsHandler:       tenants.NewHandler(logger, tenantsService, rbac),
		EquipmentHandler:     equipment.NewHandler(logger, equipmentService, rbac),
		ProjectsHandler:      projects.NewHandler(logger, projectsService, rbac, gate, tenantsService),
		UsersHandler:         users.NewHandler(logger, usersService, rbac),
		NotificationsHandler: notifications.NewHandler(logger, notifRepo, prefStore, rbac),
		ComplianceHandler:    compliance.NewHandler(logger, complianceService, rbac),
		FeaturesHandler:      features.NewHandler(logger, gate, tenantsService, rbac),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
