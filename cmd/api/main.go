package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/kinetix/ima-backend/internal/api/http"
	"github.com/kinetix/ima-backend/internal/api/http/handlers"
	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/config"
	"github.com/kinetix/ima-backend/internal/events"
	"github.com/kinetix/ima-backend/internal/observability"
	"github.com/kinetix/ima-backend/internal/persistence"
	"github.com/kinetix/ima-backend/internal/repository"
	"github.com/kinetix/ima-backend/internal/service"
	"github.com/kinetix/ima-backend/internal/worker"
	"github.com/kinetix/ima-backend/internal/workflow"
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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var broker events.Publisher
	if cfg.AMQP.URL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable; events stay in process", zap.Error(err))
		} else {
			broker = rabbit
			defer rabbit.Close()
		}
	}

	var (
		incidentRepo repository.IncidentRepository
		userRepo     repository.UserRepository
		dbPinger     handlers.Pinger
	)
	if pg.Enabled() {
		incidentRepo = repository.NewIncidentRepository(pg.PoolHandle())
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		dbPinger = pg
	} else {
		incidentRepo = repository.NewMemoryIncidentRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(*cfg, userRepo, tokens, logger)
	if err := authService.EnsureAdmin(ctx); err != nil {
		logger.Fatal("failed to bootstrap admin user", zap.Error(err))
	}

	incidentService := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: incidentRepo,
		Engine:       workflow.NewEngine(),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	notificationService := service.NewNotificationService(*cfg, service.NotificationDependencies{
		Broker: broker,
		Stats:  redis,
		Logger: logger,
	})
	notificationWorker := worker.NewNotificationWorker(notificationService, logger, 0)
	notificationWorker.Subscribe(dispatcher)
	notificationWorker.Start(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": dbPinger,
			"redis":    redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Incidents:      handlers.NewIncidentsHandler(incidentService),
		Workflow:       handlers.NewWorkflowHandler(incidentService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	notificationWorker.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
