// Package store persists clients, pets, plans, contracts and receipts.
// Lookups that find nothing return apperrors.ErrNotFound; writes that hit a
// unique index return apperrors.ErrConflict.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/models"
)

type Store interface {
	// WithinTransaction runs fn against a store bound to one transaction.
	// Any error from fn rolls back every write made through tx.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error

	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindClientByTaxID(ctx context.Context, taxID string) (*models.Client, error)
	FindClientByEmail(ctx context.Context, email string) (*models.Client, error)
	CreateClient(ctx context.Context, c *models.Client) error

	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	CreatePlan(ctx context.Context, p *models.Plan) error

	GetPet(ctx context.Context, id uuid.UUID) (*models.Pet, error)
	CreatePet(ctx context.Context, p *models.Pet) error

	GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	CreateContract(ctx context.Context, c *models.Contract) error
	SaveContract(ctx context.Context, c *models.Contract) error
	UpdateContractStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus, source models.StatusSource) error
	// ListContractsByPaymentID matches the contract's latest payment and the
	// one funding its coverage.
	ListContractsByPaymentID(ctx context.Context, paymentID string) ([]models.Contract, error)
	// ListContracts pages through all contracts in creation order.
	ListContracts(ctx context.Context, offset, limit int) ([]models.Contract, error)

	GetReceipt(ctx context.Context, id uuid.UUID) (*models.PaymentReceipt, error)
	FindReceiptByPaymentID(ctx context.Context, paymentID string) (*models.PaymentReceipt, error)
	CreateReceipt(ctx context.Context, r *models.PaymentReceipt) error
	UpdateReceiptStatus(ctx context.Context, id uuid.UUID, status models.ReceiptStatus) error
	ListReceiptsByClientEmail(ctx context.Context, email string) ([]models.PaymentReceipt, error)
}
