package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/supportrelay/chat-relay/internal/api/http"
	"github.com/supportrelay/chat-relay/internal/api/http/handlers"
	"github.com/supportrelay/chat-relay/internal/assistant"
	"github.com/supportrelay/chat-relay/internal/auth"
	"github.com/supportrelay/chat-relay/internal/config"
	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/observability"
	"github.com/supportrelay/chat-relay/internal/persistence"
	"github.com/supportrelay/chat-relay/internal/realtime"
	"github.com/supportrelay/chat-relay/internal/repository"
	"github.com/supportrelay/chat-relay/internal/service"
	"github.com/supportrelay/chat-relay/internal/uploads"
	"github.com/supportrelay/chat-relay/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	uploadStore, err := uploads.NewStore(cfg.Uploads.Dir, cfg.App.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to init uploads", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	store := repository.NewConversationStore()
	registry := repository.NewAgentRegistry(logger)
	directory := repository.NewAgentDirectory(pg.PoolHandle(), redis.Client, logger)

	bridge := assistant.NewOpenAIBridge(cfg.Assistant, logger)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		Store:       store,
		Assignments: assignmentService,
		Bridge:      bridge,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	presenceService := service.NewPresenceService(registry, dispatcher, logger)
	authService := service.NewAuthService(cfg.Auth, directory)

	hub := realtime.NewHub(store, logger, metrics)
	worker.StartRealtimeWorker(hub, dispatcher)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())
	wsHandler := realtime.NewWSHandler(hub, presenceService, cfg.Realtime.ClientBuffer, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Chat:           handlers.NewChatHandler(chatService, uploadStore),
		Agents:         handlers.NewAgentsHandler(authService),
		Realtime:       wsHandler,
		AuthMiddleware: authMiddleware,
		UploadsDir:     uploadStore.Dir(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
