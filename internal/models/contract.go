package models

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractInactive  ContractStatus = "inactive"
	ContractSuspended ContractStatus = "suspended"
	ContractCancelled ContractStatus = "cancelled"
)

type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingAnnual  BillingPeriod = "annual"
)

func (p BillingPeriod) Valid() bool {
	return p == BillingMonthly || p == BillingAnnual
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentPix        PaymentMethod = "pix"
)

// StatusSource records who wrote Contract.Status. Only operator-written
// suspended/cancelled statuses override the derived status.
type StatusSource string

const (
	StatusSourceManual StatusSource = "manual"
	StatusSourceSystem StatusSource = "system"
)

type Contract struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	PetID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"pet_id"`
	PlanID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	ContractNumber string         `gorm:"size:50;not null;uniqueIndex" json:"contract_number"`
	Status         ContractStatus `gorm:"size:20;not null;default:'inactive';index" json:"status"`
	StatusSource   StatusSource   `gorm:"size:10" json:"status_source"`
	BillingPeriod  BillingPeriod  `gorm:"size:10;not null" json:"billing_period"`
	StartDate      time.Time      `gorm:"not null" json:"start_date"`
	MonthlyAmount  int64          `json:"monthly_amount"`
	AnnualAmount   int64          `json:"annual_amount"`
	PaymentMethod  PaymentMethod  `gorm:"size:20" json:"payment_method"`
	Installments   int            `gorm:"not null;default:1" json:"installments"`

	// Gateway audit fields, stored exactly as returned.
	OrderID           string     `gorm:"size:64;index" json:"order_id"`
	PaymentID         string     `gorm:"size:64;index" json:"payment_id"`
	// ReceivedPaymentID is the payment that set ReceivedDate. It differs from
	// PaymentID while a renewal charge is still pending.
	ReceivedPaymentID string     `gorm:"size:64;index" json:"received_payment_id"`
	ProofOfSale       string     `gorm:"size:64" json:"proof_of_sale"`
	AuthorizationCode string     `gorm:"size:64" json:"authorization_code"`
	TransactionID     string     `gorm:"size:64" json:"transaction_id"`
	ReceivedDate      *time.Time `json:"received_date"`
	ReturnCode        string     `gorm:"size:10" json:"return_code"`
	ReturnMessage     string     `gorm:"size:255" json:"return_message"`

	PixQRCode       string `gorm:"type:text" json:"pix_qr_code,omitempty"`
	PixQRCodeString string `gorm:"type:text" json:"pix_qr_code_string,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Amount returns the price charged per billing period.
func (c *Contract) Amount() int64 {
	if c.BillingPeriod == BillingAnnual {
		return c.AnnualAmount
	}
	return c.MonthlyAmount
}

// IsManualOverride reports whether the stored status was written by an
// operator and must win over any derived value. Only an operator-written
// suspended or cancelled status counts: one the sweep wrote itself is derived
// again on the next pass, so a contract suspended for non-payment recovers
// once a payment lands.
func (c *Contract) IsManualOverride() bool {
	if c.Status != ContractSuspended && c.Status != ContractCancelled {
		return false
	}
	return c.StatusSource != StatusSourceSystem
}

// FundedBy reports whether paymentID is the payment behind the contract's
// current coverage.
func (c *Contract) FundedBy(paymentID string) bool {
	return c.ReceivedDate != nil && paymentID != "" && c.ReceivedPaymentID == paymentID
}
