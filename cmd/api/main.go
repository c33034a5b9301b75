package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/config"
	"github.com/noah-isme/gema-results-api/internal/database"
	"github.com/noah-isme/gema-results-api/internal/handler"
	"github.com/noah-isme/gema-results-api/internal/middleware"
	"github.com/noah-isme/gema-results-api/internal/observability"
	"github.com/noah-isme/gema-results-api/internal/repository"
	"github.com/noah-isme/gema-results-api/internal/router"
	"github.com/noah-isme/gema-results-api/internal/service"
	"github.com/noah-isme/gema-results-api/internal/worker"
	"github.com/noah-isme/gema-results-api/pkg/push"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database pool: %v", err)
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, result events go to redis only")
		} else {
			defer natsConn.Close()
		}
	}

	var gateway service.PushGateway = service.NewLogPushGateway(logger)
	if cfg.PushGatewayURL != "" {
		client, err := push.New(push.Config{
			Endpoint:  cfg.PushGatewayURL,
			ServerKey: cfg.PushGatewayKey,
			Timeout:   cfg.PushTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create push gateway client: %v", err)
		}
		gateway = client
	} else {
		logger.Warn().Msg("push gateway url not set, notifications are only logged")
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := service.QuorumPolicy{CountApproved: cfg.PublishCountApproved}

	markRepo := repository.NewMarkRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	contactRepo := repository.NewContactRepository(db)
	deliveryRepo := repository.NewPushDeliveryRepository(db)

	var cycleLock service.CycleLock = service.NewLocalCycleLock()
	if redisClient != nil {
		cycleLock = service.NewRedisCycleLock(redisClient, cfg.PublishLockKey, cfg.PublishCycleTimeout, logger)
	}

	fanout := service.NewNotificationFanout(contactRepo, deliveryRepo, gateway, logger)
	engine := service.NewPublicationEngine(
		service.NewQuorumEvaluator(markRepo, assignmentRepo, policy, logger),
		service.NewPublicationService(markRepo, policy, logger),
		fanout,
		cycleLock,
		logger,
		service.WithResultEvents(service.NewResultEvents(redisClient, natsConn, cfg.EventChannelBase, logger)),
	)

	markService := service.NewMarkService(markRepo, validate, logger)
	markActionService := service.NewMarkActionService(markRepo, fanout, validate, logger)
	scheduleService := service.NewScheduleService(markRepo, policy, validate, logger)
	notificationService := service.NewNotificationService(deliveryRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AccessLog:    cfg.AccessLog,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		MarkHandler:         handler.NewMarkHandler(markService, markActionService, logger),
		PublicationHandler:  handler.NewPublicationHandler(scheduleService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		HealthDB:            sqlDB,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	publicationWorker := worker.NewPublicationWorker(engine, worker.Config{
		Interval:     cfg.PublishInterval,
		CycleTimeout: cfg.PublishCycleTimeout,
		RunOnStart:   cfg.PublishRunOnStart,
	}, logger)
	publicationWorker.Start()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, publicationWorker, logger)
}

func waitForShutdown(app *fiber.App, publicationWorker *worker.PublicationWorker, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	publicationWorker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
