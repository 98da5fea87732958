package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/checkout"
	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/gateway"
)

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
}

func NewCheckoutHandler(orchestrator *checkout.Orchestrator) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator}
}

// Checkout answers 201 for an approved payment and 202 while the payment is
// still pending at the gateway.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	res, err := h.orchestrator.Process(c.UserContext(), checkoutRequest(&req))
	if err != nil {
		return respondError(c, err)
	}

	resp := dto.CheckoutResponse{
		OrderID:   res.OrderID,
		PaymentID: res.PaymentID,
		Status:    res.Status,
		Quote:     res.Quote,
		Client:    res.Client,
		Pets:      res.Pets,
		Contracts: res.Contracts,
		Receipt:   res.Receipt,
		Pix:       dto.NewPixResponse(res.Pix),
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, dto.ItemFailureResponse{PetName: f.PetName, Message: f.Err.Error()})
	}
	return c.Status(statusFor(res.Status)).JSON(resp)
}

func (h *CheckoutHandler) Renew(c *fiber.Ctx) error {
	contractID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.RenewRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	res, err := h.orchestrator.Renew(c.UserContext(), checkout.RenewRequest{
		ContractID:    contractID,
		BillingPeriod: req.BillingPeriod,
		Method:        req.PaymentMethod,
		Installments:  req.Installments,
		Card:          req.Card,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(statusFor(res.Status)).JSON(dto.RenewResponse{
		OrderID:   res.OrderID,
		PaymentID: res.PaymentID,
		Status:    res.Status,
		Amount:    res.Amount,
		Contract:  res.Contract,
		Receipt:   res.Receipt,
		Pix:       dto.NewPixResponse(res.Pix),
	})
}

func statusFor(s gateway.Status) int {
	if s == gateway.StatusApproved {
		return fiber.StatusCreated
	}
	return fiber.StatusAccepted
}

func checkoutRequest(req *dto.CheckoutRequest) checkout.Request {
	pets := make([]checkout.PetInput, len(req.Pets))
	for i, p := range req.Pets {
		pets[i] = checkout.PetInput{
			Name:      p.Name,
			Species:   p.Species,
			Breed:     p.Breed,
			Sex:       p.Sex,
			BirthDate: p.BirthDate,
			WeightKg:  p.WeightKg,
		}
	}
	return checkout.Request{
		Client: checkout.ClientInput{
			FullName:   req.Client.FullName,
			Email:      req.Client.Email,
			Phone:      req.Client.Phone,
			TaxID:      req.Client.TaxID,
			CEP:        req.Client.CEP,
			Address:    req.Client.Address,
			Number:     req.Client.Number,
			Complement: req.Client.Complement,
			District:   req.Client.District,
			City:       req.Client.City,
			State:      req.Client.State,
		},
		Pets:            pets,
		PlanID:          req.PlanID,
		BillingPeriod:   req.BillingPeriod,
		Method:          req.PaymentMethod,
		Installments:    req.Installments,
		Card:            req.Card,
		SubmittedAmount: req.Amount,
	}
}
