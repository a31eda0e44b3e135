package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/realtime"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/store"
	"github.com/spec-kit/ticket-triage/internal/worker"
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

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	noteRepo := repository.NewNoteRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	tagRepo := repository.NewTagRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	ticketStore := store.New()
	paginator := store.NewPaginator(ticketStore, ticketRepo, cfg.Triage.OrgID, cfg.Triage.PageSize, logger)

	mutationService := service.NewMutationService(service.MutationDependencies{
		Store:      ticketStore,
		Tickets:    ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	notesService := service.NewNotesService(service.NotesDependencies{
		Notes:      noteRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		OrgID:      cfg.Triage.OrgID,
	})
	triageService := service.NewTriageService(service.TriageDependencies{
		Store:     ticketStore,
		Paginator: paginator,
		Notes:     notesService,
		Admins:    adminRepo,
		Tags:      tagRepo,
		Config:    cfg.Triage,
		Logger:    logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	instanceID := uuid.NewString()
	publisher := realtime.NewPublisher(redis.Client, cfg.Redis.Channel, instanceID, logger)
	publisher.RegisterHandlers(dispatcher)
	subscriber := realtime.NewSubscriber(redis.Client, cfg.Redis.Channel, instanceID, ticketStore, ticketRepo, logger)

	worker.StartNotificationWorker(notificationService)
	worker.StartRealtimeWorker(ctx, subscriber)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, adminRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Board:          handlers.NewBoardHandler(triageService),
		Mutations:      handlers.NewMutationsHandler(mutationService, triageService),
		Notes:          handlers.NewNotesHandler(notesService),
		Tags:           handlers.NewTagsHandler(triageService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
