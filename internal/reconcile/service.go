// Package reconcile brings stored contracts in line with the gateway. The
// webhook, the polling endpoint and the reconciliation job all go through
// SyncPayment, so applying the same gateway state twice changes nothing.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/billing"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/logging"
	"github.com/unipet/billing-engine/internal/metrics"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/store"
)

// ReceiptIssuer issues the receipt of a payment from its stored contracts.
type ReceiptIssuer interface {
	GenerateForContracts(ctx context.Context, paymentID string, contracts []models.Contract) (*models.PaymentReceipt, error)
}

type Service struct {
	store    store.Store
	gateway  gateway.Gateway
	receipts ReceiptIssuer
	now      func() time.Time
	pageSize int
}

func New(st store.Store, gw gateway.Gateway, issuer ReceiptIssuer) *Service {
	return &Service{
		store:    st,
		gateway:  gw,
		receipts: issuer,
		now:      time.Now,
		pageSize: 200,
	}
}

type SyncResult struct {
	PaymentID string                 `json:"payment_id"`
	Status    gateway.Status         `json:"status"`
	Contracts []models.Contract      `json:"contracts"`
	Updated   int                    `json:"updated"`
	Receipt   *models.PaymentReceipt `json:"receipt,omitempty"`
}

// SyncPayment reads the payment from the gateway and applies it to every
// contract that carries its id.
func (s *Service) SyncPayment(ctx context.Context, paymentID string) (*SyncResult, error) {
	if paymentID == "" {
		return nil, apperrors.Invalid("payment_id", "is required")
	}
	charge, err := s.gateway.QueryCharge(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, charge, "payment", models.StatusSourceSystem)
}

func (s *Service) apply(ctx context.Context, charge *gateway.Charge, trigger string, source models.StatusSource) (*SyncResult, error) {
	log := logging.FromContext(ctx).With("payment_id", charge.PaymentID, "gateway_status", string(charge.Status))

	contracts, err := s.store.ListContractsByPaymentID(ctx, charge.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts for payment: %w", err)
	}

	res := &SyncResult{PaymentID: charge.PaymentID, Status: charge.Status}
	now := s.now().UTC()
	for i := range contracts {
		c := &contracts[i]
		before := c.Status
		if !applyCharge(c, charge, now, source) {
			continue
		}
		if err := s.store.SaveContract(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to update contract %s: %w", c.ContractNumber, err)
		}
		res.Updated++
		if c.Status != before {
			metrics.ContractTransitionsTotal.WithLabelValues(string(c.Status), trigger).Inc()
			log.InfoContext(ctx, "contract status changed",
				"contract_id", c.ID.String(), "from", string(before), "to", string(c.Status))
		}
	}
	res.Contracts = contracts

	if charge.Succeeded() && len(contracts) > 0 && s.receipts != nil {
		receipt, err := s.receipts.GenerateForContracts(ctx, charge.PaymentID, contracts)
		if err != nil {
			log.ErrorContext(ctx, "receipt generation failed", "error", err.Error())
		} else {
			res.Receipt = receipt
		}
	}
	return res, nil
}

// applyCharge moves the gateway's view of a payment onto c and reports
// whether anything changed. An approved charge that already funds coverage is
// a no-op, as is a decline arriving after an approval. Voiding or refunding a
// payment only demotes the contract when that payment is what it is covered by.
func applyCharge(c *models.Contract, charge *gateway.Charge, now time.Time, source models.StatusSource) bool {
	switch charge.Status {
	case gateway.StatusApproved:
		if c.FundedBy(charge.PaymentID) {
			return false
		}
		received := now
		if charge.ReceivedDate != nil {
			received = charge.ReceivedDate.UTC()
		}
		anchor := billing.RenewalAnchor(c, received)
		c.ReceivedDate = &anchor
		c.ReceivedPaymentID = charge.PaymentID
		c.ReturnCode = charge.ReturnCode
		c.ReturnMessage = charge.ReturnMessage
		c.ProofOfSale = charge.ProofOfSale
		c.AuthorizationCode = charge.AuthorizationCode
		c.TransactionID = charge.TransactionID
		c.PixQRCode, c.PixQRCodeString = "", ""
		if !c.IsManualOverride() {
			c.Status = models.ContractActive
			c.StatusSource = models.StatusSourceSystem
		}
		return true

	case gateway.StatusDeclined:
		if billing.IsSuccessReturnCode(c.ReturnCode) && c.ReceivedDate != nil {
			return dropPending(c, charge)
		}
		if c.ReturnCode == charge.ReturnCode && c.ReturnMessage == charge.ReturnMessage {
			return false
		}
		c.ReturnCode = charge.ReturnCode
		c.ReturnMessage = charge.ReturnMessage
		return true

	case gateway.StatusVoided, gateway.StatusRefunded:
		if c.ReceivedDate != nil && !c.FundedBy(charge.PaymentID) {
			return dropPending(c, charge)
		}
		status := models.ContractCancelled
		if charge.Status == gateway.StatusRefunded {
			status = models.ContractInactive
		}
		return setStatus(c, status, source, charge)

	default:
		return false
	}
}

// dropPending forgets the PIX code of an in-flight payment that will never be
// paid. The coverage and audit fields of the funding payment stay.
func dropPending(c *models.Contract, charge *gateway.Charge) bool {
	if c.PaymentID != charge.PaymentID || (c.PixQRCode == "" && c.PixQRCodeString == "") {
		return false
	}
	c.PixQRCode, c.PixQRCodeString = "", ""
	return true
}

func setStatus(c *models.Contract, status models.ContractStatus, source models.StatusSource, charge *gateway.Charge) bool {
	if c.Status == status || (c.IsManualOverride() && source != models.StatusSourceManual) {
		return false
	}
	c.Status = status
	c.StatusSource = source
	if charge.ReturnMessage != "" {
		c.ReturnMessage = charge.ReturnMessage
	}
	return true
}

type OrderResolution struct {
	OrderID  string        `json:"order_id"`
	Found    bool          `json:"found"`
	Payments []*SyncResult `json:"payments"`
	// Orphans are approved payments with no contract behind them.
	Orphans []string `json:"orphans,omitempty"`
}

// ResolveOrder settles a checkout whose gateway call ended without an answer.
// When the gateway has no payment for the order, nothing was charged and the
// customer may retry.
func (s *Service) ResolveOrder(ctx context.Context, orderID string) (*OrderResolution, error) {
	if orderID == "" {
		return nil, apperrors.Invalid("order_id", "is required")
	}
	ids, err := s.gateway.QueryByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out := &OrderResolution{OrderID: orderID, Found: len(ids) > 0}
	for _, id := range ids {
		charge, err := s.gateway.QueryCharge(ctx, id)
		if err != nil {
			return nil, err
		}
		res, err := s.apply(ctx, charge, "reconcile", models.StatusSourceSystem)
		if err != nil {
			return nil, err
		}
		if len(res.Contracts) == 0 && charge.Succeeded() {
			out.Orphans = append(out.Orphans, id)
			logging.Escalate(ctx, "orphan_charge", "approved payment has no contract", nil,
				"payment_id", id, "order_id", orderID, "amount", charge.Amount)
		}
		out.Payments = append(out.Payments, res)
	}

	logging.FromContext(ctx).InfoContext(ctx, "order resolved",
		"order_id", orderID, "payments", len(ids), "orphans", len(out.Orphans))
	return out, nil
}

// Capture confirms a previously authorized card payment of the contract.
// amount nil captures the full authorization.
func (s *Service) Capture(ctx context.Context, contractID uuid.UUID, amount *int64) (*SyncResult, error) {
	paymentID, err := s.paymentOf(ctx, contractID)
	if err != nil {
		return nil, err
	}
	charge, err := s.gateway.Capture(ctx, paymentID, amount)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, charge, "capture", models.StatusSourceSystem)
}

// Cancel voids or refunds the contract's payment. The resulting status is
// recorded as an operator decision.
func (s *Service) Cancel(ctx context.Context, contractID uuid.UUID, amount *int64) (*SyncResult, error) {
	paymentID, err := s.paymentOf(ctx, contractID)
	if err != nil {
		return nil, err
	}
	charge, err := s.gateway.Cancel(ctx, paymentID, amount)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, charge, "cancel", models.StatusSourceManual)
}

func (s *Service) paymentOf(ctx context.Context, contractID uuid.UUID) (string, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return "", err
	}
	if c.PaymentID == "" {
		return "", apperrors.Invalid("contract_id", "contract %s has no payment", c.ContractNumber)
	}
	return c.PaymentID, nil
}

// Chargeback flags a disputed payment for a human and syncs whatever the
// gateway reports for it now.
func (s *Service) Chargeback(ctx context.Context, paymentID string) (*SyncResult, error) {
	logging.Escalate(ctx, "chargeback", "payment disputed by cardholder", nil, "payment_id", paymentID)
	return s.SyncPayment(ctx, paymentID)
}
