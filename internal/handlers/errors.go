package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/dto"
)

// respondError maps a service error onto the JSON error body. Ambiguous
// gateway failures carry the order id so the caller reconciles it before
// trying again.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation  *apperrors.ValidationError
		declined    *apperrors.GatewayDeclinedError
		unavailable *apperrors.GatewayUnavailableError
		persistence *apperrors.PersistenceAfterChargeError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: validation.Message, Field: validation.Field,
		})

	case errors.Is(err, apperrors.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})

	case errors.As(err, &declined):
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{
			Error:     true,
			Message:   "Payment declined: " + declined.Message,
			Code:      declined.Code,
			PaymentID: declined.PaymentID,
		})

	case errors.As(err, &unavailable):
		retryable := unavailable.Retryable()
		message := "Payment gateway unavailable, please try again"
		if !retryable {
			message = "Payment status unknown, check the order before trying again"
		}
		slog.WarnContext(c.UserContext(), "gateway unavailable",
			"path", c.Path(), "order_id", unavailable.OrderID, "error", err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error:     true,
			Message:   message,
			OrderID:   unavailable.OrderID,
			Retryable: &retryable,
		})

	case errors.As(err, &persistence):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:     true,
			Message:   "Payment received but the plan could not be saved. Our team has been notified",
			OrderID:   persistence.OrderID,
			PaymentID: persistence.PaymentID,
		})

	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})

	case errors.Is(err, apperrors.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	slog.ErrorContext(c.UserContext(), "request failed",
		"method", c.Method(), "path", c.Path(), "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.Invalid(name, "must be a UUID")
	}
	return id, nil
}

// parseOptional decodes the body into out unless it is empty.
func parseOptional(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}
