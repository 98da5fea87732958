package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/models"
)

const pgUniqueViolation = "23505"

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func translate(err error, entity, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(entity, key)
	case isUniqueViolation(err):
		return fmt.Errorf("%s %s: %w", entity, key, apperrors.ErrConflict)
	default:
		return fmt.Errorf("%s %s: %w", entity, key, err)
	}
}

func (s *GormStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "client", id.String())
	}
	return &c, nil
}

func (s *GormStore) FindClientByTaxID(ctx context.Context, taxID string) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Where("tax_id = ?", taxID).First(&c).Error
	if err != nil {
		return nil, translate(err, "client", taxID)
	}
	return &c, nil
}

func (s *GormStore) FindClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).Order("created_at").First(&c).Error
	if err != nil {
		return nil, translate(err, "client", email)
	}
	return &c, nil
}

func (s *GormStore) CreateClient(ctx context.Context, c *models.Client) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "client", c.TaxID)
}

func (s *GormStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "plan", id.String())
	}
	return &p, nil
}

func (s *GormStore) CreatePlan(ctx context.Context, p *models.Plan) error {
	return translate(s.db.WithContext(ctx).Create(p).Error, "plan", p.Name)
}

func (s *GormStore) GetPet(ctx context.Context, id uuid.UUID) (*models.Pet, error) {
	var p models.Pet
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "pet", id.String())
	}
	return &p, nil
}

func (s *GormStore) CreatePet(ctx context.Context, p *models.Pet) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(p).Error, "pet", p.Name)
}

func (s *GormStore) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "contract", id.String())
	}
	return &c, nil
}

func (s *GormStore) CreateContract(ctx context.Context, c *models.Contract) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "contract", c.ContractNumber)
}

func (s *GormStore) SaveContract(ctx context.Context, c *models.Contract) error {
	return translate(s.db.WithContext(ctx).Save(c).Error, "contract", c.ContractNumber)
}

func (s *GormStore) UpdateContractStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus, source models.StatusSource) error {
	result := s.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"status_source": source,
		})
	if result.Error != nil {
		return translate(result.Error, "contract", id.String())
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("contract", id.String())
	}
	return nil
}

func (s *GormStore) ListContractsByPaymentID(ctx context.Context, paymentID string) ([]models.Contract, error) {
	var contracts []models.Contract
	err := s.db.WithContext(ctx).Where("payment_id = ? OR received_payment_id = ?", paymentID, paymentID).Order("created_at, id").Find(&contracts).Error
	if err != nil {
		return nil, translate(err, "contracts for payment", paymentID)
	}
	return contracts, nil
}

func (s *GormStore) ListContracts(ctx context.Context, offset, limit int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := s.db.WithContext(ctx).Order("created_at, id").Offset(offset).Limit(limit).Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, nil
}

func (s *GormStore) GetReceipt(ctx context.Context, id uuid.UUID) (*models.PaymentReceipt, error) {
	var r models.PaymentReceipt
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "receipt", id.String())
	}
	return &r, nil
}

func (s *GormStore) FindReceiptByPaymentID(ctx context.Context, paymentID string) (*models.PaymentReceipt, error) {
	var r models.PaymentReceipt
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&r).Error
	if err != nil {
		return nil, translate(err, "receipt for payment", paymentID)
	}
	return &r, nil
}

func (s *GormStore) CreateReceipt(ctx context.Context, r *models.PaymentReceipt) error {
	return translate(s.db.WithContext(ctx).Create(r).Error, "receipt", r.PaymentID)
}

func (s *GormStore) UpdateReceiptStatus(ctx context.Context, id uuid.UUID, status models.ReceiptStatus) error {
	result := s.db.WithContext(ctx).Model(&models.PaymentReceipt{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return translate(result.Error, "receipt", id.String())
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("receipt", id.String())
	}
	return nil
}

func (s *GormStore) ListReceiptsByClientEmail(ctx context.Context, email string) ([]models.PaymentReceipt, error) {
	var receipts []models.PaymentReceipt
	err := s.db.WithContext(ctx).
		Where("LOWER(client_email) = ?", strings.ToLower(email)).
		Order("payment_date DESC").
		Find(&receipts).Error
	if err != nil {
		return nil, translate(err, "receipts for client", email)
	}
	return receipts, nil
}
