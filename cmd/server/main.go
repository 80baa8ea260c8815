package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup("info")

	cfg := config.Load()
	stdout := logging.Setup(cfg.LogLevel)

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
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLogHandler)))

	// Log cleanup (30-day retention)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	logging.StartCleanup(ctx, database.DB, logging.DefaultRetention)

	// Services
	st := store.NewGormStore(database.DB)
	paymentMetrics := metrics.NewPayments()
	engine := services.NewReconciliationEngine(st, paymentMetrics)

	authService := services.NewAuthService(st, cfg)
	planService := services.NewPlanService(st)
	gate := services.NewAccessGate(st, paymentMetrics)
	khaltiService := services.NewKhaltiService(engine, st, services.NewKhaltiClient(cfg), cfg, paymentMetrics)
	esewaService := services.NewEsewaService(engine, st, services.NewEsewaClient(cfg), cfg, paymentMetrics)
	manualService := services.NewManualPaymentService(engine, st)
	adminService := services.NewAdminService(st)

	// Seed plans and the optional bootstrap admin
	if err := planService.SeedDefaults(ctx); err != nil {
		slog.Error("plan seeding failed", "error", err)
		os.Exit(1)
	}
	if err := authService.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		slog.Error("admin seeding failed", "error", err)
	}

	if !cfg.KhaltiConfigured() {
		slog.Warn("khalti is not configured; KHALTI_SECRET_KEY is empty")
	}
	if !cfg.EsewaConfigured() {
		slog.Warn("esewa is not configured; ESEWA_SECRET_KEY or ESEWA_MERCHANT_CODE is empty")
	}

	deps := routes.Deps{
		Auth:          handlers.NewAuthHandler(authService),
		Health:        handlers.NewHealthHandler(database.Ping),
		Subscriptions: handlers.NewSubscriptionHandler(planService, gate, khaltiService, esewaService, manualService),
		Payments:      handlers.NewPaymentHandler(planService, khaltiService, esewaService, manualService, cfg),
		Admin:         handlers.NewAdminHandler(manualService, adminService),
		Roles:         authService,
		Metrics:       paymentMetrics.Handler(),
	}
	// Shared rate-limit storage
	var limiterStorage *cache.RedisStorage
	if cfg.RedisURL != "" {
		s, err := cache.NewRedisStorage(cfg.RedisURL, "tutor:limiter:")
		if err != nil {
			slog.Error("redis unavailable, using in-memory rate limiter", "error", err)
		} else {
			limiterStorage = s
			deps.LimiterStorage = s
			slog.Info("rate limiter using redis")
		}
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
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
		BodyLimit:    4 * 1024 * 1024,
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
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, deps)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if limiterStorage != nil {
		if err := limiterStorage.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
