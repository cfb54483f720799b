package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/guild-tickets/internal/api/http"
	"github.com/spec-kit/guild-tickets/internal/api/http/handlers"
	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/config"
	"github.com/spec-kit/guild-tickets/internal/events"
	"github.com/spec-kit/guild-tickets/internal/observability"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/internal/repository"
	"github.com/spec-kit/guild-tickets/internal/service"
	"github.com/spec-kit/guild-tickets/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	defaults, err := config.LoadSettingsDefaults(cfg.Lifecycle.SettingsDefaultsFile)
	if err != nil {
		logger.Fatal("failed to load settings defaults", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	permissions, err := auth.NewPermissions()
	if err != nil {
		logger.Fatal("failed to build permissions", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	sink := events.NewSink(cfg.Kafka, logger)
	defer sink.Close() //nolint:errcheck
	worker.StartEffectRelay(dispatcher, worker.NewEffectRelay(sink, metrics, logger))

	workspaces := repository.NewWorkspaceRepository(store, repository.Options{
		Defaults:       defaults,
		RetryBackoff:   cfg.Storage.RetryBackoff(),
		MaxCASAttempts: cfg.Storage.MaxCASAttempts,
	}, logger)
	registry := repository.NewTicketRegistry(store, workspaces, cfg.Storage.RetryBackoff(), logger)

	lifecycle := service.NewTicketLifecycle(service.LifecycleDependencies{
		Workspaces:  workspaces,
		Registry:    registry,
		Permissions: permissions,
		DeleteDelay: cfg.Lifecycle.DeleteDelay(),
		Logger:      logger,
	})
	admin := service.NewWorkspaceAdmin(service.AdminDependencies{
		Workspaces:  workspaces,
		Permissions: permissions,
		Defaults:    defaults,
		Logger:      logger,
	})
	intents := service.NewDispatcher(service.DispatcherDependencies{
		Lifecycle: lifecycle,
		Admin:     admin,
		Events:    dispatcher,
		Metrics:   metrics,
		Logger:    logger,
	})
	authService := service.NewAuthService(cfg.Auth, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Storage.Backend, store),
		Auth:           handlers.NewAuthHandler(authService),
		Intents:        handlers.NewIntentsHandler(intents),
		Workspaces:     handlers.NewWorkspacesHandler(workspaces, lifecycle),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
