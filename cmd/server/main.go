package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/joho/godotenv"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/apps"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/apps/locations"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/apps/orders"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/cache"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/database"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/logging"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/routes"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	// Migrate shared models
	if err := database.MigrateShared(); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdoutHandler, pgLogHandler)))

	// Domain events
	var publisher events.Publisher = events.NopPublisher{}
	var amqpPublisher *events.AMQPPublisher
	var eventQueue *events.AsyncPublisher
	if cfg.EventsEnabled {
		amqpPublisher = events.NewAMQPPublisher(cfg.RabbitMQURL)
		eventQueue = events.NewAsyncPublisher(amqpPublisher, 256)
		publisher = eventQueue
		slog.Info("domain events enabled")
	}

	// Uploaded images
	uploads, err := storage.NewUploads(cfg.UploadDir)
	if err != nil {
		slog.Error("upload directory unavailable", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	// Rate limiter storage (Redis when configured)
	var limiterStorage fiber.Storage
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		slog.Warn("redis unavailable, rate limiting in memory", "error", err)
	} else if redisClient != nil {
		limiterStorage = cache.NewRedisStorage(redisClient, "ratelimit:")
		slog.Info("redis connected", "addr", cfg.RedisAddr)
	}

	// Services
	authService := services.NewAuthService(database.DB, cfg)
	userService := services.NewUserService(database.DB, authService, publisher)

	// Daily cleanup: 30-day log retention, expired refresh tokens
	cleanupDone := make(chan struct{})
	logging.StartCleanup(cleanupDone,
		logging.LogPurger(database.DB),
		logging.Purger{Name: "refresh_tokens", Purge: authService.PurgeExpiredTokens},
	)

	plugins := []apps.Plugin{
		locations.New(publisher),
		orders.New(uploads, publisher),
	}

	// Migrate plugin models
	for _, p := range plugins {
		if models := p.Models(); len(models) > 0 {
			if err := database.MigrateModels(models); err != nil {
				slog.Error("plugin migration failed", "plugin", p.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
		}
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	healthHandler := handlers.NewHealthHandler(database.Ping)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxUploadBytes,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	app.Static("/uploads", uploads.Dir(), fiber.Static{MaxAge: 3600})

	// Routes
	routes.Setup(app, cfg, database.DB, limiterStorage, authHandler, userHandler, healthHandler, plugins)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if eventQueue != nil {
		eventQueue.Close()
	}
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			slog.Error("event publisher close error", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

// customErrorHandler handles errors that escape a handler, including fiber's
// own (404 route, 413 body limit). The envelope matches
// handlers.WriteError.
func customErrorHandler(c *fiber.Ctx, err error) error {
	return handlers.WriteError(c, err)
}
