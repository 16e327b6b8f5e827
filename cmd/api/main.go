package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/config"
	"github.com/noah-isme/tutorhub-api/internal/database"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/router"
	"github.com/noah-isme/tutorhub-api/internal/service"
	cloud "github.com/noah-isme/tutorhub-api/pkg/cloudinary"
	"github.com/noah-isme/tutorhub-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; eligibility cache and redis event relay disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary credentials not set; application documents cannot be uploaded")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	validate := service.NewValidator()

	applicationRepo := repository.NewUpgradeApplicationRepository(db)
	documentRepo := repository.NewApplicationDocumentRepository(db)
	assignmentRepo := repository.NewTutorAssignmentRepository(db)
	referralRepo := repository.NewStudentReferralRepository(db)
	userRepo := repository.NewUserRepository(db)
	metricsRepo := repository.NewTutorMetricsRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	broker := service.NewEventBroker(logger)
	switch {
	case natsConn != nil:
		broker.WithNATS(natsConn, cfg.EventsChannel)
	case redisClient != nil:
		broker.WithRedis(redisClient, cfg.EventsChannel)
	}

	if cfg.EmailEnabled() {
		sender, err := mailer.NewSES(rootCtx, mailer.Config{Region: cfg.AWSRegion, Sender: cfg.SESSender}, logger)
		if err != nil {
			log.Fatalf("failed to configure ses: %v", err)
		}
		broker.AddSink(service.NewEmailEventSink(sender, userRepo, logger))
	}

	activityService := service.NewActivityService(activityRepo, logger)
	eligibilityService := service.NewEligibilityService(metricsRepo, cfg.Eligibility, redisClient, cfg.EligibilityCacheTTL, logger)
	unsubscribe := service.InvalidateOnApplicationEvents(broker, eligibilityService)
	defer unsubscribe()

	applicationService := service.NewUpgradeApplicationService(service.UpgradeApplicationDeps{
		Applications: applicationRepo,
		Documents:    documentRepo,
		Metrics:      metricsRepo,
		Users:        userRepo,
		Storage:      storage,
		Activity:     activityService,
		Events:       broker,
		Requirements: cfg.Eligibility,
		MaxUploadMB:  cfg.UploadMaxMB,
	}, validate, logger)
	queueService := service.NewUpgradeReviewQueueService(applicationRepo, applicationService, activityService, validate, logger)
	assignmentService := service.NewTutorAssignmentService(assignmentRepo, referralRepo, userRepo, activityService, broker, validate, logger)

	broker.Start(rootCtx)

	probes := map[string]handler.HealthProbe{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TutorUpgradeHandler:    handler.NewTutorUpgradeHandler(eligibilityService, applicationService, logger),
		AdminUpgradeHandler:    handler.NewAdminUpgradeHandler(queueService, applicationService, logger),
		UpgradeEventsHandler:   handler.NewUpgradeEventsHandler(broker, logger),
		TutorAssignmentHandler: handler.NewTutorAssignmentHandler(assignmentService, logger),
		HealthProbes:           probes,
		JWTMiddleware:          middleware.JWTProtected(cfg.JWTSecret),
		SubmitLimiter:          middleware.RateLimit("upgrade-submit", cfg.SubmitRatePerMinute, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
