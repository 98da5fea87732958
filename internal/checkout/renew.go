package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/billing"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/plans"
	"github.com/unipet/billing-engine/internal/receipts"
)

type RenewRequest struct {
	ContractID uuid.UUID
	// BillingPeriod switches the contract's period. Empty keeps it.
	BillingPeriod models.BillingPeriod
	Method        models.PaymentMethod
	Installments  int
	Card          *gateway.Card
}

type RenewResult struct {
	OrderID   string
	PaymentID string
	Status    gateway.Status
	Amount    int64
	Contract  *models.Contract
	Receipt   *models.PaymentReceipt
	Pix       *gateway.PixData
}

// Renew charges one more period for an existing contract and updates its
// billing fields in place. An approved payment made before coverage ends
// starts at the current expiration. A pending payment keeps the current
// coverage and period until it is confirmed.
func (o *Orchestrator) Renew(ctx context.Context, req RenewRequest) (*RenewResult, error) {
	log := logging.FromContext(ctx).With("contract_id", req.ContractID.String())

	contract, err := o.store.GetContract(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.IsManualOverride() {
		metrics.CheckoutsTotal.WithLabelValues("renewal", "invalid").Inc()
		return nil, apperrors.Invalid("contract_id", "contract is %s by an operator", contract.Status)
	}

	period := req.BillingPeriod
	if period == "" {
		period = contract.BillingPeriod
	}
	if req.Method == models.PaymentCreditCard && req.Card == nil {
		return nil, apperrors.Invalid("card", "is required for credit card payments")
	}
	if req.Method == models.PaymentPix && req.Installments == 0 {
		req.Installments = 1
	}

	plan, err := o.store.GetPlan(ctx, contract.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	policy := o.policies.Policy(plan.Family)
	if err := policy.Validate(plans.Selection{
		BillingPeriod: period,
		Method:        req.Method,
		Installments:  req.Installments,
		PetCount:      1,
	}); err != nil {
		metrics.CheckoutsTotal.WithLabelValues("renewal", "invalid").Inc()
		return nil, err
	}
	quote := plans.NewQuote(plan.BasePrice, 1, policy)

	client, err := o.store.GetClient(ctx, contract.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	orderID := o.newOrderID()
	ctx = logging.WithCorrelationID(ctx, correlationFor(ctx, orderID))
	charge, err := o.charge(ctx, &gateway.ChargeRequest{
		OrderID:      orderID,
		Amount:       quote.Total,
		Installments: max(1, req.Installments),
		Method:       req.Method,
		Customer:     gateway.Customer{Name: client.FullName, Email: client.Email, TaxID: client.TaxID},
		Card:         req.Card,
	}, "renewal")
	if err != nil {
		return nil, err
	}

	received := o.now().UTC()
	if charge.ReceivedDate != nil {
		received = charge.ReceivedDate.UTC()
	}
	anchor := billing.RenewalAnchor(contract, received)

	if charge.Succeeded() {
		contract.BillingPeriod = period
		setAmount(contract, quote.Total)
	}
	contract.PaymentMethod = req.Method
	contract.Installments = max(1, req.Installments)
	applyCharge(contract, charge, anchor)

	if err := o.store.SaveContract(ctx, contract); err != nil {
		perr := &apperrors.PersistenceAfterChargeError{PaymentID: charge.PaymentID, OrderID: orderID, Err: err}
		logging.Escalate(ctx, "persistence_after_charge", "renewal charged but contract not updated", perr,
			"payment_id", charge.PaymentID, "order_id", orderID, "contract_id", contract.ID.String())
		metrics.CheckoutsTotal.WithLabelValues("renewal", "persistence_failed").Inc()
		return nil, perr
	}

	res := &RenewResult{
		OrderID:   orderID,
		PaymentID: charge.PaymentID,
		Status:    charge.Status,
		Amount:    quote.Total,
		Contract:  contract,
		Pix:       charge.Pix,
	}
	if charge.Succeeded() {
		res.Receipt = o.issueRenewalReceipt(ctx, client, plan, contract, quote)
	}

	metrics.CheckoutsTotal.WithLabelValues("renewal", string(charge.Status)).Inc()
	log.InfoContext(ctx, "renewal completed",
		"order_id", orderID,
		"payment_id", charge.PaymentID,
		"status", string(charge.Status),
		"coverage_from", anchor,
	)
	return res, nil
}

func (o *Orchestrator) issueRenewalReceipt(ctx context.Context, client *models.Client, plan *models.Plan, c *models.Contract, quote plans.Quote) *models.PaymentReceipt {
	line := models.ReceiptPetLine{
		PlanName:   plan.Name,
		BaseAmount: quote.Lines[0].BaseAmount,
		Amount:     quote.Lines[0].Amount,
	}
	if pet, err := o.store.GetPet(ctx, c.PetID); err == nil {
		line.Name, line.Species, line.Breed = pet.Name, pet.Species, pet.Breed
	}
	receipt, err := o.receipts.Generate(ctx, receipts.Input{
		PaymentID:     c.PaymentID,
		ContractID:    &c.ID,
		ClientName:    client.FullName,
		ClientEmail:   client.Email,
		ClientTaxID:   client.TaxID,
		PlanName:      plan.Name,
		BillingPeriod: c.BillingPeriod,
		Method:        c.PaymentMethod,
		Pets:          []models.ReceiptPetLine{line},
	})
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "receipt generation failed",
			"payment_id", c.PaymentID, "error", err.Error())
		return nil
	}
	return receipt
}
