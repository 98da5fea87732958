// Package checkout turns one customer purchase into a single gateway charge
// and, when the charge goes through, the matching pet and contract records.
package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/plans"
	"github.com/unipet/billing-engine/internal/receipts"
	"github.com/unipet/billing-engine/internal/store"
)

// ReceiptIssuer issues the receipt of an approved payment.
type ReceiptIssuer interface {
	Generate(ctx context.Context, in receipts.Input) (*models.PaymentReceipt, error)
}

type ClientInput struct {
	FullName   string
	Email      string
	Phone      string
	TaxID      string
	CEP        string
	Address    string
	Number     string
	Complement string
	District   string
	City       string
	State      string
}

type PetInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	WeightKg  float64
}

type Request struct {
	Client        ClientInput
	Pets          []PetInput
	PlanID        uuid.UUID
	BillingPeriod models.BillingPeriod
	Method        models.PaymentMethod
	Installments  int
	Card          *gateway.Card
	// SubmittedAmount is what the client displayed. It is compared with the
	// server-side quote for logging and never charged.
	SubmittedAmount int64
}

// ItemFailure is a pet that could not be materialized after the charge.
type ItemFailure struct {
	PetName string
	Err     error
}

type Result struct {
	OrderID   string
	PaymentID string
	Status    gateway.Status
	Quote     plans.Quote
	Client    *models.Client
	Pets      []models.Pet
	Contracts []models.Contract
	Receipt   *models.PaymentReceipt
	Pix       *gateway.PixData
	Failures  []ItemFailure
}

type Orchestrator struct {
	store    store.Store
	gateway  gateway.Gateway
	receipts ReceiptIssuer
	policies *plans.Registry
	timeout  time.Duration

	now        func() time.Time
	newOrderID func() string
}

func New(st store.Store, gw gateway.Gateway, issuer ReceiptIssuer, policies *plans.Registry, timeout time.Duration) *Orchestrator {
	if policies == nil {
		policies = plans.DefaultRegistry()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{
		store:      st,
		gateway:    gw,
		receipts:   issuer,
		policies:   policies,
		timeout:    timeout,
		now:        time.Now,
		newOrderID: newOrderID,
	}
}

func newOrderID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Process runs one checkout. Policy violations return before anything is
// written or charged. A declined charge leaves at most the resolved client
// behind. A gateway error is ambiguous: the returned error carries the order
// id to reconcile before the customer tries again.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	log := logging.FromContext(ctx)

	if err := validateRequest(&req); err != nil {
		metrics.CheckoutsTotal.WithLabelValues("checkout", "invalid").Inc()
		return nil, err
	}

	plan, err := o.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			metrics.CheckoutsTotal.WithLabelValues("checkout", "invalid").Inc()
			return nil, apperrors.Invalid("plan_id", "plan %s does not exist", req.PlanID)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if !plan.IsActive {
		metrics.CheckoutsTotal.WithLabelValues("checkout", "invalid").Inc()
		return nil, apperrors.Invalid("plan_id", "plan %s is not available", plan.Name)
	}

	policy := o.policies.Policy(plan.Family)
	if err := policy.Validate(plans.Selection{
		BillingPeriod: req.BillingPeriod,
		Method:        req.Method,
		Installments:  req.Installments,
		PetCount:      len(req.Pets),
	}); err != nil {
		metrics.CheckoutsTotal.WithLabelValues("checkout", "invalid").Inc()
		return nil, err
	}

	quote := plans.NewQuote(plan.BasePrice, len(req.Pets), policy)
	if req.SubmittedAmount != 0 && req.SubmittedAmount != quote.Total {
		log.WarnContext(ctx, "submitted amount differs from server quote",
			"submitted", req.SubmittedAmount, "quoted", quote.Total, "plan", plan.Name)
	}

	client, err := o.resolveClient(ctx, req.Client)
	if err != nil {
		return nil, err
	}

	orderID := o.newOrderID()
	log = log.With("order_id", orderID)
	ctx = logging.WithCorrelationID(ctx, correlationFor(ctx, orderID))

	charge, err := o.charge(ctx, &gateway.ChargeRequest{
		OrderID:      orderID,
		Amount:       quote.Total,
		Installments: max(1, req.Installments),
		Method:       req.Method,
		Customer:     gateway.Customer{Name: client.FullName, Email: client.Email, TaxID: client.TaxID},
		Card:         req.Card,
	}, "checkout")
	if err != nil {
		return nil, err
	}

	res := &Result{
		OrderID:   orderID,
		PaymentID: charge.PaymentID,
		Status:    charge.Status,
		Quote:     quote,
		Client:    client,
		Pix:       charge.Pix,
	}

	now := o.now().UTC()
	var lines []plans.Line
	for i, in := range req.Pets {
		pet, contract, err := o.materialize(ctx, client, plan, in, quote.Lines[i], &req, charge, now)
		if err != nil {
			log.ErrorContext(ctx, "failed to materialize pet after charge",
				"payment_id", charge.PaymentID, "pet", in.Name, "error", err.Error())
			res.Failures = append(res.Failures, ItemFailure{PetName: in.Name, Err: err})
			continue
		}
		res.Pets = append(res.Pets, *pet)
		res.Contracts = append(res.Contracts, *contract)
		lines = append(lines, quote.Lines[i])
	}

	if len(res.Contracts) == 0 {
		perr := &apperrors.PersistenceAfterChargeError{
			PaymentID: charge.PaymentID,
			OrderID:   orderID,
			Err:       errors.Join(failureErrors(res.Failures)...),
		}
		logging.Escalate(ctx, "persistence_after_charge", "charge succeeded but no contract was written", perr,
			"payment_id", charge.PaymentID, "order_id", orderID, "pets", len(req.Pets))
		metrics.CheckoutsTotal.WithLabelValues("checkout", "persistence_failed").Inc()
		return nil, perr
	}
	for _, f := range res.Failures {
		logging.Escalate(ctx, "partial_materialization", "pet left without contract after charge", f.Err,
			"payment_id", charge.PaymentID, "order_id", orderID, "pet", f.PetName)
	}

	if charge.Succeeded() {
		res.Receipt = o.issueReceipt(ctx, client, plan, &req, res, lines)
	}

	metrics.CheckoutsTotal.WithLabelValues("checkout", string(charge.Status)).Inc()
	log.InfoContext(ctx, "checkout completed",
		"payment_id", charge.PaymentID,
		"status", string(charge.Status),
		"amount", quote.Total,
		"contracts", len(res.Contracts),
		"failures", len(res.Failures),
	)
	return res, nil
}

// charge makes the single gateway attempt and folds every non-success into
// the error taxonomy.
func (o *Orchestrator) charge(ctx context.Context, req *gateway.ChargeRequest, kind string) (*gateway.Charge, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	charge, err := o.gateway.CreateCharge(callCtx, req)
	if err != nil {
		var declined *apperrors.GatewayDeclinedError
		if errors.As(err, &declined) {
			metrics.CheckoutsTotal.WithLabelValues(kind, "declined").Inc()
			return nil, declined
		}
		var unavailable *apperrors.GatewayUnavailableError
		if !errors.As(err, &unavailable) {
			unavailable = &apperrors.GatewayUnavailableError{Op: "create_charge", Err: err}
		}
		unavailable.OrderID = req.OrderID
		unavailable.Ambiguous = true
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			unavailable.Timeout = true
		}
		metrics.CheckoutsTotal.WithLabelValues(kind, "ambiguous").Inc()
		logging.FromContext(ctx).ErrorContext(ctx, "gateway charge outcome unknown",
			"order_id", req.OrderID, "timeout", unavailable.Timeout, "error", err.Error())
		return nil, unavailable
	}

	switch charge.Status {
	case gateway.StatusApproved, gateway.StatusPending, gateway.StatusAuthorized:
		return charge, nil
	case gateway.StatusUnknown:
		metrics.CheckoutsTotal.WithLabelValues(kind, "ambiguous").Inc()
		return nil, &apperrors.GatewayUnavailableError{
			Op:        "create_charge",
			OrderID:   req.OrderID,
			Ambiguous: true,
			Err:       fmt.Errorf("payment %s returned an unrecognized status", charge.PaymentID),
		}
	default:
		metrics.CheckoutsTotal.WithLabelValues(kind, "declined").Inc()
		return nil, &apperrors.GatewayDeclinedError{
			PaymentID: charge.PaymentID,
			Code:      charge.ReturnCode,
			Message:   charge.ReturnMessage,
		}
	}
}

// issueReceipt lists the pets that got a contract, priced by lines.
func (o *Orchestrator) issueReceipt(ctx context.Context, client *models.Client, plan *models.Plan, req *Request, res *Result, lines []plans.Line) *models.PaymentReceipt {
	in := receipts.Input{
		PaymentID:     res.PaymentID,
		ContractID:    &res.Contracts[0].ID,
		ClientName:    client.FullName,
		ClientEmail:   client.Email,
		ClientTaxID:   client.TaxID,
		PlanName:      plan.Name,
		BillingPeriod: req.BillingPeriod,
		Method:        req.Method,
	}
	for i, pet := range res.Pets {
		line := lines[i]
		in.Pets = append(in.Pets, models.ReceiptPetLine{
			Name:            pet.Name,
			Species:         pet.Species,
			Breed:           pet.Breed,
			PlanName:        plan.Name,
			BaseAmount:      line.BaseAmount,
			DiscountPercent: line.DiscountPercent,
			Amount:          line.Amount,
		})
	}

	receipt, err := o.receipts.Generate(ctx, in)
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "receipt generation failed",
			"payment_id", res.PaymentID, "error", err.Error())
		return nil
	}
	return receipt
}

func validateRequest(req *Request) error {
	req.Client.FullName = strings.TrimSpace(req.Client.FullName)
	req.Client.Email = strings.ToLower(strings.TrimSpace(req.Client.Email))
	req.Client.TaxID = NormalizeTaxID(req.Client.TaxID)

	if req.Client.FullName == "" {
		return apperrors.Invalid("client.full_name", "is required")
	}
	if n := len(req.Client.TaxID); n != 11 && n != 14 {
		return apperrors.Invalid("client.tax_id", "must have 11 (CPF) or 14 (CNPJ) digits")
	}
	if req.PlanID == uuid.Nil {
		return apperrors.Invalid("plan_id", "is required")
	}
	for i := range req.Pets {
		req.Pets[i].Name = strings.TrimSpace(req.Pets[i].Name)
		if req.Pets[i].Name == "" {
			return apperrors.Invalid(fmt.Sprintf("pets[%d].name", i), "is required")
		}
	}
	if req.Method == models.PaymentCreditCard && req.Card == nil {
		return apperrors.Invalid("card", "is required for credit card payments")
	}
	if req.Method == models.PaymentPix && req.Installments == 0 {
		req.Installments = 1
	}
	return nil
}

func failureErrors(failures []ItemFailure) []error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func correlationFor(ctx context.Context, orderID string) string {
	if id := logging.CorrelationID(ctx); id != "" {
		return id
	}
	return orderID
}
