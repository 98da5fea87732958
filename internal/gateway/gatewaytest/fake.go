// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
)

// Fake records every call. By default CreateCharge answers with NextStatus;
// set CreateFunc to script anything else.
type Fake struct {
	mu      sync.Mutex
	charges map[string]*gateway.Charge
	orders  map[string][]string
	seq     int

	NextStatus gateway.Status
	Now        time.Time
	CreateFunc func(req *gateway.ChargeRequest) (*gateway.Charge, error)
	QueryErr   error

	CreateCalls []gateway.ChargeRequest
	QueryCalls  int
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		charges:    make(map[string]*gateway.Charge),
		orders:     make(map[string][]string),
		NextStatus: gateway.StatusApproved,
		Now:        time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC),
	}
}

func (f *Fake) CreateCharge(_ context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls = append(f.CreateCalls, *req)

	var charge *gateway.Charge
	if f.CreateFunc != nil {
		c, err := f.CreateFunc(req)
		if err != nil || c == nil {
			return c, err
		}
		charge = c
	} else {
		f.seq++
		charge = f.build(fmt.Sprintf("pay-%d", f.seq), req, f.NextStatus)
	}
	f.store(charge)
	out := *charge
	return &out, nil
}

func (f *Fake) build(paymentID string, req *gateway.ChargeRequest, status gateway.Status) *gateway.Charge {
	c := &gateway.Charge{
		PaymentID:    paymentID,
		OrderID:      req.OrderID,
		Status:       status,
		Amount:       req.Amount,
		Installments: max(1, req.Installments),
		Method:       req.Method,
	}
	switch status {
	case gateway.StatusApproved:
		now := f.Now
		c.ReceivedDate = &now
		c.ReturnCode = "00"
		c.ReturnMessage = "Transacao autorizada"
		c.ProofOfSale = "PS-" + paymentID
		c.AuthorizationCode = "AUTH-" + paymentID
		c.TransactionID = "TID-" + paymentID
	case gateway.StatusPending:
		c.ReturnCode = "0"
		c.ReturnMessage = "Pix gerado"
		c.Pix = &gateway.PixData{QRCodeBase64: "iVBORw0KGgo", QRCodeString: "00020126" + paymentID}
	case gateway.StatusDeclined:
		c.ReturnCode = "05"
		c.ReturnMessage = "Nao Autorizada"
	}
	return c
}

func (f *Fake) store(c *gateway.Charge) {
	stored := *c
	f.charges[c.PaymentID] = &stored
	if c.OrderID != "" {
		f.orders[c.OrderID] = append(f.orders[c.OrderID], c.PaymentID)
	}
}

// SetCharge replaces what the gateway reports for c.PaymentID.
func (f *Fake) SetCharge(c *gateway.Charge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.charges[c.PaymentID]
	stored := *c
	f.charges[c.PaymentID] = &stored
	if !ok || existing.OrderID != c.OrderID {
		if c.OrderID != "" {
			f.orders[c.OrderID] = append(f.orders[c.OrderID], c.PaymentID)
		}
	}
}

// Approve flips a stored charge to approved, as a confirmed PIX would.
func (f *Fake) Approve(paymentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charges[paymentID]
	if !ok {
		return
	}
	now := f.Now
	c.Status = gateway.StatusApproved
	c.ReceivedDate = &now
	c.ReturnCode = "00"
	c.ReturnMessage = "Pagamento confirmado"
	c.ProofOfSale = "PS-" + paymentID
	c.TransactionID = "TID-" + paymentID
	c.Pix = nil
}

func (f *Fake) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CreateCalls)
}

func (f *Fake) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.QueryCalls
}

func (f *Fake) QueryCharge(_ context.Context, paymentID string) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	c, ok := f.charges[paymentID]
	if !ok {
		return nil, apperrors.NotFound("payment", paymentID)
	}
	out := *c
	return &out, nil
}

func (f *Fake) QueryByOrderID(_ context.Context, orderID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return append([]string(nil), f.orders[orderID]...), nil
}

func (f *Fake) Capture(_ context.Context, paymentID string, amount *int64) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charges[paymentID]
	if !ok {
		return nil, apperrors.NotFound("payment", paymentID)
	}
	now := f.Now
	c.Status = gateway.StatusApproved
	c.ReceivedDate = &now
	c.ReturnCode = "00"
	if amount != nil {
		c.Amount = *amount
	}
	out := *c
	return &out, nil
}

func (f *Fake) Cancel(_ context.Context, paymentID string, amount *int64) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charges[paymentID]
	if !ok {
		return nil, apperrors.NotFound("payment", paymentID)
	}
	c.Status = gateway.StatusVoided
	c.ReturnCode = "9"
	c.ReturnMessage = "Cancelamento realizado"
	if amount != nil {
		c.Amount -= *amount
	}
	out := *c
	return &out, nil
}
