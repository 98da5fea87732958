package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unipet/billing-engine/internal/handlers"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Checkout *handlers.CheckoutHandler
	Payment  *handlers.PaymentHandler
	Receipt  *handlers.ReceiptHandler
	Contract *handlers.ContractHandler
	Webhook  *handlers.WebhookHandler
}

func Setup(app *fiber.App, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Registered ahead of the limiter so gateway retries are never throttled
	api.Post("/webhooks/cielo", h.Webhook.HandleCielo)

	// General API rate limiter: 60 req/min per IP
	api.Use(rateLimit(60))

	api.Get("/health", h.Health.Check)

	// Payment-creating routes: 10 req/min per IP (stricter)
	charging := rateLimit(10)
	api.Post("/checkout", charging, h.Checkout.Checkout)
	api.Post("/contracts/:id/renew", charging, h.Checkout.Renew)

	api.Get("/contracts/:id/status", h.Contract.Status)
	api.Post("/contracts/:id/capture", h.Payment.Capture)
	api.Post("/contracts/:id/cancel", h.Payment.Cancel)

	api.Get("/payments/:payment_id", h.Payment.Status)
	api.Post("/orders/:order_id/reconcile", h.Payment.ResolveOrder)

	api.Get("/receipts", h.Receipt.List)
	api.Get("/receipts/:id/download", h.Receipt.Download)
	api.Post("/receipts/:id/sent", h.Receipt.MarkSent)
}

func rateLimit(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               perMinute,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}
