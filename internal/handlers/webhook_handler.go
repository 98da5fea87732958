package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/gateway/cielo"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/reconcile"
)

type WebhookHandler struct {
	reconciler *reconcile.Service
	secret     string
	// requireSignature rejects notifications when no secret is configured.
	requireSignature bool
}

func NewWebhookHandler(reconciler *reconcile.Service, secret string, requireSignature bool) *WebhookHandler {
	return &WebhookHandler{
		reconciler:       reconciler,
		secret:           secret,
		requireSignature: requireSignature,
	}
}

// HandleCielo applies a Cielo change notification. Answering non-2xx makes
// Cielo deliver it again, so only failures worth retrying do that.
func (h *WebhookHandler) HandleCielo(c *fiber.Ctx) error {
	ctx := c.UserContext()
	body := c.Body()

	if h.secret == "" {
		if h.requireSignature {
			slog.ErrorContext(ctx, "cielo webhook rejected: no secret configured")
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Webhooks not configured",
			})
		}
		slog.WarnContext(ctx, "accepting unsigned cielo webhook")
	} else if !cielo.ValidateSignature(h.secret, body, c.Get(cielo.SignatureHeader)) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	n, err := cielo.ParseNotification(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}
	changeType := cielo.ChangeTypeName(n.ChangeType)

	switch n.ChangeType {
	case cielo.ChangePaymentStatus:
		_, err = h.reconciler.SyncPayment(ctx, n.PaymentID)
	case cielo.ChangeChargeback:
		_, err = h.reconciler.Chargeback(ctx, n.PaymentID)
	default:
		slog.InfoContext(ctx, "webhook ignored", "payment_id", n.PaymentID, "change_type", changeType)
		metrics.WebhookEventsTotal.WithLabelValues(changeType, "ignored").Inc()
		return c.JSON(fiber.Map{"received": true})
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			slog.WarnContext(ctx, "webhook for unknown payment", "payment_id", n.PaymentID, "change_type", changeType)
			metrics.WebhookEventsTotal.WithLabelValues(changeType, "unknown_payment").Inc()
			return c.JSON(fiber.Map{"received": true})
		}
		slog.ErrorContext(ctx, "webhook processing failed",
			"payment_id", n.PaymentID, "change_type", changeType, "error", err.Error())
		metrics.WebhookEventsTotal.WithLabelValues(changeType, "failed").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.InfoContext(ctx, "webhook processed", "payment_id", n.PaymentID, "change_type", changeType)
	metrics.WebhookEventsTotal.WithLabelValues(changeType, "processed").Inc()
	return c.JSON(fiber.Map{"received": true})
}
