package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/billing"
	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/store"
)

type ContractHandler struct {
	store store.Store
	now   func() time.Time
}

func NewContractHandler(st store.Store) *ContractHandler {
	return &ContractHandler{store: st, now: time.Now}
}

// Status evaluates the contract at request time. Nothing is written.
func (h *ContractHandler) Status(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	contract, err := h.store.GetContract(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	now := h.now().UTC()
	result := billing.Evaluate(contract, now)
	return c.JSON(dto.ContractStatusResponse{
		ContractID:     contract.ID,
		ContractNumber: contract.ContractNumber,
		StoredStatus:   contract.Status,
		BillingPeriod:  contract.BillingPeriod,
		Evaluation:     result,
		Description:    billing.Describe(result),
		ActionRequired: billing.ActionRequired(result),
		EvaluatedAt:    now,
	})
}
