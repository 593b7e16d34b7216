package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"creator-portal/config"
	"creator-portal/handlers"
	"creator-portal/middleware"
	"creator-portal/models"
	"creator-portal/services"
	"creator-portal/utils"
	"creator-portal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event bus: Redis when configured so every instance sees every change.
	hub := services.NewHub(logger)
	var bus services.EventBus = hub
	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to configure redis", zap.Error(err))
		}
		defer client.Close()

		redisBus := services.NewRedisBus(client, hub, logger)
		go func() {
			if err := redisBus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis event relay stopped", zap.Error(err))
			}
		}()
		bus = redisBus
		logger.Info("event bus: redis")
	} else {
		logger.Info("event bus: in-process")
	}

	var store utils.ObjectStore
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		store = r2
	} else {
		if err := utils.EnsureUploadDir(); err != nil {
			logger.Fatal("failed to ensure upload dir", zap.Error(err))
		}
		store = utils.NewLocalStore()
	}

	var mailer utils.Mailer = &utils.LogMailer{Log: logger}
	if cfg.SMTP.Enabled() {
		mailer = utils.NewSMTPMailer(cfg.SMTP)
	}

	applications := services.NewApplicationService(db, bus, mailer, store, logger)
	missions := services.NewMissionService(db, bus, logger)
	notifications := services.NewNotificationService(db, bus, logger)
	streams := services.NewStreamService(db, bus, logger)
	reconciler := workers.NewCardReconciler(db, bus, logger)

	go reconciler.Start(ctx, cfg.ReconcileInterval)

	sweep, err := missions.StartExpirySweep(cfg.MissionSweepInterval)
	if err != nil {
		logger.Fatal("failed to start mission expiry sweep", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 8 * 1024 * 1024, // avatars are capped at 5MB
	})
	app.Use(recover.New())
	app.Use(middleware.RequestMetrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		Config:        cfg,
		DB:            db,
		Log:           logger,
		Applications:  applications,
		Missions:      missions,
		Notifications: notifications,
		Streams:       streams,
		Reconciler:    reconciler,
	})

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("server running",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Environment),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
		zap.Int("admins", len(cfg.AdminEmails)))

	<-ctx.Done()
	logger.Info("shutting down server")

	if err := sweep.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
