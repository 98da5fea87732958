package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReceiptStatus string

const (
	ReceiptGenerated  ReceiptStatus = "generated"
	ReceiptDownloaded ReceiptStatus = "downloaded"
	ReceiptSent       ReceiptStatus = "sent"
)

var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptGenerated:  {ReceiptDownloaded, ReceiptSent},
	ReceiptDownloaded: {ReceiptSent},
}

// CanTransition reports whether a receipt may move from s to next.
func (s ReceiptStatus) CanTransition(next ReceiptStatus) bool {
	for _, allowed := range receiptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentReceipt is keyed by the gateway payment id. Display fields are a
// snapshot taken at generation time so the document can be rebuilt later
// without calling the gateway.
type PaymentReceipt struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ContractID    *uuid.UUID    `gorm:"type:uuid;index" json:"contract_id"`
	PaymentID     string        `gorm:"size:64;not null;uniqueIndex" json:"payment_id"`
	ReceiptNumber string        `gorm:"size:40;not null;uniqueIndex" json:"receipt_number"`
	PaymentAmount int64         `gorm:"not null" json:"payment_amount"`
	PaymentDate   time.Time     `gorm:"not null" json:"payment_date"`
	PaymentMethod PaymentMethod `gorm:"size:20;not null" json:"payment_method"`
	Installments  int           `gorm:"not null;default:1" json:"installments"`
	BillingPeriod BillingPeriod `gorm:"size:10" json:"billing_period"`
	ObjectKey     string        `gorm:"size:255;not null" json:"-"`
	FileName      string        `gorm:"size:255;not null" json:"file_name"`
	Status        ReceiptStatus `gorm:"size:20;not null;default:'generated'" json:"status"`

	ProofOfSale       string `gorm:"size:64" json:"proof_of_sale"`
	AuthorizationCode string `gorm:"size:64" json:"authorization_code"`
	TransactionID     string `gorm:"size:64" json:"transaction_id"`
	ReturnCode        string `gorm:"size:10" json:"return_code"`
	ReturnMessage     string `gorm:"size:255" json:"return_message"`

	ClientName  string         `gorm:"size:255" json:"client_name"`
	ClientEmail string         `gorm:"size:255;index" json:"client_email"`
	ClientTaxID string         `gorm:"size:14" json:"client_tax_id"`
	PetName     string         `gorm:"size:255" json:"pet_name"`
	PlanName    string         `gorm:"size:100" json:"plan_name"`
	PetLines    datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"pet_lines"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReceiptPetLine is one entry of PaymentReceipt.PetLines.
type ReceiptPetLine struct {
	Name            string `json:"name"`
	Species         string `json:"species,omitempty"`
	Breed           string `json:"breed,omitempty"`
	PlanName        string `json:"plan_name"`
	BaseAmount      int64  `json:"base_amount"`
	DiscountPercent int    `json:"discount_percent"`
	Amount          int64  `json:"amount"`
}
