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

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/clients"
	"github.com/meridian-erp/meridian-erp/internal/departments"
	"github.com/meridian-erp/meridian-erp/internal/leave"
	"github.com/meridian-erp/meridian-erp/internal/notifications"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/roles"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	// Redis backs token revocation and the job queue, so an unreachable
	// instance is fatal at startup.
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

	metrics := observability.NewMetrics()

	store := authcache.NewPGStore(dbpool)
	graph := authcache.NewPermissionGraph(store)
	coordinator := authcache.NewCoordinator(
		authcache.NewClientDirectory(store),
		graph,
		authcache.NewRevocationSet(redisClient, cfg.TokenTTL),
		logger,
		metrics,
	)
	resolver := authcache.NewResolver(graph)

	// Serving requests against empty caches would deny every login, so a
	// failed warm-up is fatal.
	if err := coordinator.Warm(ctx); err != nil {
		logger.Error("warm caches", slog.Any("error", err))
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	authService := auth.NewService(coordinator, tokens)
	authHandler := auth.NewHandler(logger, authService)

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}

	notificationsService := notifications.NewService(
		notifications.NewRepository(dbpool),
		coordinator,
		resolver,
		queue,
		leave.AuthorityApprove,
	)
	notificationsHandler := notifications.NewHandler(logger, notificationsService)

	clientsService := clients.NewService(clients.NewRepository(dbpool), coordinator, notificationsService)
	clientsHandler := clients.NewHandler(logger, clientsService)
	authService.SetLoginRecorder(clientsService)

	rolesService := roles.NewService(roles.NewRepository(dbpool), coordinator)
	rolesHandler := roles.NewHandler(logger, rolesService)

	departmentsService := departments.NewService(departments.NewRepository(dbpool), coordinator, resolver)
	departmentsHandler := departments.NewHandler(logger, departmentsService)

	leaveService := leave.NewService(leave.NewRepository(dbpool), resolver, notificationsService)
	leaveHandler := leave.NewHandler(logger, leaveService)

	procurementService := procurement.NewService(procurement.NewRepository(dbpool))
	procurementHandler := procurement.NewHandler(logger, procurementService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Metrics:              metrics,
		Authenticator:        app.NewAuthenticator(logger, authService),
		Authorizer:           app.NewAuthorizer(resolver),
		Cache:                coordinator,
		AuthHandler:          authHandler,
		ClientsHandler:       clientsHandler,
		RolesHandler:         rolesHandler,
		DepartmentsHandler:   departmentsHandler,
		LeaveHandler:         leaveHandler,
		ProcurementHandler:   procurementHandler,
		NotificationsHandler: notificationsHandler,
		JobHandler:           jobHandler,
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
