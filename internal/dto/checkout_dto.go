package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/billing"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/plans"
)

type ClientRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	TaxID      string `json:"cpf"`
	CEP        string `json:"cep"`
	Address    string `json:"address"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type PetRequest struct {
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed"`
	Sex       string     `json:"sex"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	WeightKg  float64    `json:"weight_kg"`
}

type CheckoutRequest struct {
	Client        ClientRequest        `json:"client"`
	Pets          []PetRequest         `json:"pets"`
	PlanID        uuid.UUID            `json:"plan_id"`
	BillingPeriod models.BillingPeriod `json:"billing_period"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Installments  int                  `json:"installments"`
	Card          *gateway.Card        `json:"card,omitempty"`
	// Amount is the total shown to the customer, in cents.
	Amount int64 `json:"amount"`
}

type RenewRequest struct {
	BillingPeriod models.BillingPeriod `json:"billing_period,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Installments  int                  `json:"installments"`
	Card          *gateway.Card        `json:"card,omitempty"`
}

type PixResponse struct {
	QRCode       string `json:"qr_code"`
	QRCodeString string `json:"qr_code_string"`
}

func NewPixResponse(p *gateway.PixData) *PixResponse {
	if p == nil {
		return nil
	}
	return &PixResponse{QRCode: p.QRCodeBase64, QRCodeString: p.QRCodeString}
}

type ItemFailureResponse struct {
	PetName string `json:"pet_name"`
	Message string `json:"message"`
}

type CheckoutResponse struct {
	OrderID   string                 `json:"order_id"`
	PaymentID string                 `json:"payment_id"`
	Status    gateway.Status         `json:"status"`
	Quote     plans.Quote            `json:"quote"`
	Client    *models.Client         `json:"client"`
	Pets      []models.Pet           `json:"pets"`
	Contracts []models.Contract      `json:"contracts"`
	Receipt   *models.PaymentReceipt `json:"receipt,omitempty"`
	Pix       *PixResponse           `json:"pix,omitempty"`
	Failures  []ItemFailureResponse  `json:"failures,omitempty"`
}

type RenewResponse struct {
	OrderID   string                 `json:"order_id"`
	PaymentID string                 `json:"payment_id"`
	Status    gateway.Status         `json:"status"`
	Amount    int64                  `json:"amount"`
	Contract  *models.Contract       `json:"contract"`
	Receipt   *models.PaymentReceipt `json:"receipt,omitempty"`
	Pix       *PixResponse           `json:"pix,omitempty"`
}

type ContractStatusResponse struct {
	ContractID     uuid.UUID             `json:"contract_id"`
	ContractNumber string                `json:"contract_number"`
	StoredStatus   models.ContractStatus `json:"stored_status"`
	BillingPeriod  models.BillingPeriod  `json:"billing_period"`
	Evaluation     billing.Result        `json:"evaluation"`
	Description    string                `json:"description"`
	ActionRequired string                `json:"action_required,omitempty"`
	EvaluatedAt    time.Time             `json:"evaluated_at"`
}

type ReceiptListResponse struct {
	Receipts []models.PaymentReceipt `json:"receipts"`
	Count    int                     `json:"count"`
}

type DownloadResponse struct {
	Receipt *models.PaymentReceipt `json:"receipt"`
	URL     string                 `json:"url"`
}
