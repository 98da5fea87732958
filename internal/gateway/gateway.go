// Package gateway defines the payment gateway port used by checkout, receipts
// and reconciliation. Implementations never retry a charge on their own.
package gateway

import (
	"context"
	"time"

	"github.com/unipet/billing-engine/internal/models"
)

// Status is the gateway-neutral state of a charge.
type Status string

const (
	StatusApproved   Status = "approved"
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusDeclined   Status = "declined"
	StatusVoided     Status = "voided"
	StatusRefunded   Status = "refunded"
	StatusUnknown    Status = "unknown"
)

type Customer struct {
	Name  string
	Email string
	TaxID string
}

type Card struct {
	Number         string `json:"number"`
	Holder         string `json:"holder"`
	ExpirationDate string `json:"expiration_date"`
	SecurityCode   string `json:"security_code"`
	Brand          string `json:"brand"`
}

type ChargeRequest struct {
	OrderID      string
	Amount       int64
	Installments int
	Method       models.PaymentMethod
	Customer     Customer
	Card         *Card
}

type PixData struct {
	QRCodeBase64 string
	QRCodeString string
}

// Charge is the gateway's view of a payment. Proof fields are kept verbatim.
type Charge struct {
	PaymentID         string
	OrderID           string
	Status            Status
	Amount            int64
	Installments      int
	Method            models.PaymentMethod
	ProofOfSale       string
	AuthorizationCode string
	TransactionID     string
	ReturnCode        string
	ReturnMessage     string
	ReceivedDate      *time.Time
	Pix               *PixData
}

// Succeeded reports whether money was captured.
func (c *Charge) Succeeded() bool {
	return c.Status == StatusApproved
}

// Gateway is the payment provider port.
type Gateway interface {
	CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error)
	QueryCharge(ctx context.Context, paymentID string) (*Charge, error)
	QueryByOrderID(ctx context.Context, orderID string) ([]string, error)
	Capture(ctx context.Context, paymentID string, amount *int64) (*Charge, error)
	Cancel(ctx context.Context, paymentID string, amount *int64) (*Charge, error)
}
