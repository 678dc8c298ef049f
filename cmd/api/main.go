package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dispatch-service/internal/api/http"
	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/predictor"
	"github.com/spec-kit/dispatch-service/internal/repository"
	"github.com/spec-kit/dispatch-service/internal/service"
	"github.com/spec-kit/dispatch-service/internal/worker"
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
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewServiceRequestRepository(pool)
	assignmentRepo := repository.NewWorkAssignmentRepository(pool)

	txRunner := persistence.NewTxRunner(pool)
	dispatcher := events.NewInMemoryDispatcher()
	predictorClient := predictor.NewHTTPClient(cfg.Predictor)

	availability := service.NewAvailabilityService(assignmentRepo)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		RequestRepo:    requestRepo,
		AssignmentRepo: assignmentRepo,
		UserRepo:       userRepo,
		Availability:   availability,
		Tx:             txRunner,
		Dispatcher:     dispatcher,
	})
	selectorService := service.NewSelectorService(service.SelectorDependencies{
		RequestRepo:    requestRepo,
		UserRepo:       userRepo,
		AssignmentRepo: assignmentRepo,
		Predictor:      predictorClient,
		Availability:   availability,
		Lifecycle:      assignmentService,
		Logger:         logger,
	})
	workloadService := service.NewWorkloadService(service.WorkloadDependencies{
		UserRepo:       userRepo,
		AssignmentRepo: assignmentRepo,
		RequestRepo:    requestRepo,
		Cache:          redis,
		CacheTTL:       cfg.Scheduler.WorkloadCacheTTL(),
		Logger:         logger,
	})
	requestService := service.NewRequestService(service.RequestDependencies{
		RequestRepo: requestRepo,
		UserRepo:    userRepo,
		Predictor:   predictorClient,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	directoryService := service.NewDirectoryService(userRepo)
	notificationService := service.NewNotificationService(dispatcher, predictorClient, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)
	workloadService.RegisterHandlers(dispatcher)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Requests:    handlers.NewRequestsHandler(requestService),
		Assignments: handlers.NewAssignmentsHandler(assignmentService, selectorService, metrics),
		Workload:    handlers.NewWorkloadHandler(workloadService),
		Technicians: handlers.NewTechniciansHandler(directoryService),
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
