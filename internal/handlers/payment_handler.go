package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/reconcile"
)

type PaymentHandler struct {
	reconciler *reconcile.Service
}

func NewPaymentHandler(reconciler *reconcile.Service) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler}
}

// Status polls the gateway for a payment and applies the answer to its
// contracts. Checkout UIs call it while a PIX payment is pending.
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	res, err := h.reconciler.SyncPayment(c.UserContext(), c.Params("payment_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *PaymentHandler) ResolveOrder(c *fiber.Ctx) error {
	res, err := h.reconciler.ResolveOrder(c.UserContext(), c.Params("order_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *PaymentHandler) Capture(c *fiber.Ctx) error {
	contractID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AmountRequest
	if err := parseOptional(c, &req); err != nil {
		return invalidBody(c)
	}

	res, err := h.reconciler.Capture(c.UserContext(), contractID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	contractID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AmountRequest
	if err := parseOptional(c, &req); err != nil {
		return invalidBody(c)
	}

	res, err := h.reconciler.Cancel(c.UserContext(), contractID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
