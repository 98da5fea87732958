package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/unipet/billing-engine/internal/checkout"
	"github.com/unipet/billing-engine/internal/config"
	"github.com/unipet/billing-engine/internal/database"
	"github.com/unipet/billing-engine/internal/gateway/cielo"
	"github.com/unipet/billing-engine/internal/handlers"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/middleware"
	"github.com/unipet/billing-engine/internal/objectstore"
	"github.com/unipet/billing-engine/internal/plans"
	"github.com/unipet/billing-engine/internal/receipts"
	"github.com/unipet/billing-engine/internal/reconcile"
	"github.com/unipet/billing-engine/internal/routes"
	"github.com/unipet/billing-engine/internal/store"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.Cielo.MerchantID == "" || cfg.Cielo.MerchantKey == "" {
		slog.Error("CIELO_MERCHANT_ID and CIELO_MERCHANT_KEY are required")
		os.Exit(1)
	}
	if cfg.Webhook.CieloSecret == "" && cfg.IsProduction() {
		slog.Error("CIELO_WEBHOOK_SECRET is required in production")
		os.Exit(1)
	}

	// Plan family policies
	policies, err := plans.LoadFromFile(cfg.PlanPolicyPath)
	if err != nil {
		slog.Error("failed to load plan policies", "path", cfg.PlanPolicyPath, "error", err)
		os.Exit(1)
	}
	slog.Info("plan policies loaded", "families", len(policies.Families()))

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
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewStdoutHandler(),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetention, cleanupDone)

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

	// Receipt storage
	objects, err := objectstore.NewMinioStore(&cfg.Minio)
	if err != nil {
		slog.Error("object store init failed", "error", err)
		os.Exit(1)
	}
	bucketCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = objects.EnsureBucket(bucketCtx)
	cancel()
	if err != nil {
		slog.Error("object store bucket check failed", "bucket", cfg.Minio.Bucket, "error", err)
		os.Exit(1)
	}

	// Services
	st := store.NewGormStore(database.DB)
	gw := cielo.NewClient(&cfg.Cielo)
	generator := receipts.NewGenerator(st, gw, objects,
		receipts.NewPDFRenderer(receipts.Company{
			Name:         cfg.Receipts.CompanyName,
			TaxID:        cfg.Receipts.CompanyCNPJ,
			SupportEmail: cfg.Receipts.SupportMail,
		}),
		receipts.Options{URLTTL: cfg.Receipts.URLTTL, Stream: cfg.Receipts.Stream},
	)
	orchestrator := checkout.New(st, gw, generator, policies, cfg.Cielo.Timeout)
	reconciler := reconcile.New(st, gw, generator)

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
	app.Use(middleware.Correlation())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, routes.Handlers{
		Health:   handlers.NewHealthHandler(database.Ping, objects),
		Checkout: handlers.NewCheckoutHandler(orchestrator),
		Payment:  handlers.NewPaymentHandler(reconciler),
		Receipt:  handlers.NewReceiptHandler(generator),
		Contract: handlers.NewContractHandler(st),
		Webhook:  handlers.NewWebhookHandler(reconciler, cfg.Webhook.CieloSecret, cfg.IsProduction()),
	})

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

	close(cleanupDone)

	// In-flight checkouts finish before the log handler and database go away
	if err := app.ShutdownWithTimeout(cfg.Cielo.Timeout + 5*time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.ErrorContext(c.UserContext(), "unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
