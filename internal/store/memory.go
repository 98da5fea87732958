package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/models"
)

// Memory is a Store kept in process memory, for tests and local runs. It
// enforces the same unique keys as the database schema. Transactions are
// serialized and roll back by restoring a snapshot.
type Memory struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	clients   map[uuid.UUID]models.Client
	plans     map[uuid.UUID]models.Plan
	pets      map[uuid.UUID]models.Pet
	contracts map[uuid.UUID]models.Contract
	receipts  map[uuid.UUID]models.PaymentReceipt

	// Hooks run before the matching write; a non-nil error aborts it.
	BeforeCreateClient   func(*models.Client) error
	BeforeCreatePet      func(*models.Pet) error
	BeforeCreateContract func(*models.Contract) error
	BeforeCreateReceipt  func(*models.PaymentReceipt) error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		clients:   make(map[uuid.UUID]models.Client),
		plans:     make(map[uuid.UUID]models.Plan),
		pets:      make(map[uuid.UUID]models.Pet),
		contracts: make(map[uuid.UUID]models.Contract),
		receipts:  make(map[uuid.UUID]models.PaymentReceipt),
	}
}

type memorySnapshot struct {
	clients   map[uuid.UUID]models.Client
	plans     map[uuid.UUID]models.Plan
	pets      map[uuid.UUID]models.Pet
	contracts map[uuid.UUID]models.Contract
	receipts  map[uuid.UUID]models.PaymentReceipt
}

func (m *Memory) WithinTransaction(_ context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memorySnapshot{
		clients:   maps.Clone(m.clients),
		plans:     maps.Clone(m.plans),
		pets:      maps.Clone(m.pets),
		contracts: maps.Clone(m.contracts),
		receipts:  maps.Clone(m.receipts),
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.clients, m.plans, m.pets = snap.clients, snap.plans, snap.pets
		m.contracts, m.receipts = snap.contracts, snap.receipts
		m.mu.Unlock()
		return err
	}
	return nil
}

func stamp(id *uuid.UUID, created, updated *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func (m *Memory) GetClient(_ context.Context, id uuid.UUID) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, apperrors.NotFound("client", id.String())
	}
	return &c, nil
}

func (m *Memory) FindClientByTaxID(_ context.Context, taxID string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.TaxID == taxID {
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("client", taxID)
}

func (m *Memory) FindClientByEmail(_ context.Context, email string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Client
	for _, c := range m.clients {
		if strings.EqualFold(c.Email, email) && (found == nil || c.CreatedAt.Before(found.CreatedAt)) {
			found = &c
		}
	}
	if found == nil {
		return nil, apperrors.NotFound("client", email)
	}
	return found, nil
}

func (m *Memory) CreateClient(_ context.Context, c *models.Client) error {
	if m.BeforeCreateClient != nil {
		if err := m.BeforeCreateClient(c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.clients {
		if existing.TaxID == c.TaxID {
			return conflict("client", c.TaxID)
		}
	}
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	m.clients[c.ID] = *c
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, apperrors.NotFound("plan", id.String())
	}
	return &p, nil
}

func (m *Memory) CreatePlan(_ context.Context, p *models.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	m.plans[p.ID] = *p
	return nil
}

func (m *Memory) GetPet(_ context.Context, id uuid.UUID) (*models.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pets[id]
	if !ok {
		return nil, apperrors.NotFound("pet", id.String())
	}
	return &p, nil
}

func (m *Memory) CreatePet(_ context.Context, p *models.Pet) error {
	if m.BeforeCreatePet != nil {
		if err := m.BeforeCreatePet(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	m.pets[p.ID] = *p
	return nil
}

func (m *Memory) GetContract(_ context.Context, id uuid.UUID) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, apperrors.NotFound("contract", id.String())
	}
	return &c, nil
}

func (m *Memory) CreateContract(_ context.Context, c *models.Contract) error {
	if m.BeforeCreateContract != nil {
		if err := m.BeforeCreateContract(c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contracts {
		if existing.ContractNumber == c.ContractNumber {
			return conflict("contract", c.ContractNumber)
		}
	}
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	m.contracts[c.ID] = *c
	return nil
}

func (m *Memory) SaveContract(_ context.Context, c *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.contracts {
		if id != c.ID && existing.ContractNumber == c.ContractNumber {
			return conflict("contract", c.ContractNumber)
		}
	}
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	m.contracts[c.ID] = *c
	return nil
}

func (m *Memory) UpdateContractStatus(_ context.Context, id uuid.UUID, status models.ContractStatus, source models.StatusSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return apperrors.NotFound("contract", id.String())
	}
	c.Status = status
	c.StatusSource = source
	c.UpdatedAt = time.Now().UTC()
	m.contracts[id] = c
	return nil
}

func (m *Memory) ListContractsByPaymentID(_ context.Context, paymentID string) ([]models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Contract
	for _, c := range m.contracts {
		if c.PaymentID == paymentID || c.ReceivedPaymentID == paymentID {
			out = append(out, c)
		}
	}
	sortContracts(out)
	return out, nil
}

func (m *Memory) ListContracts(_ context.Context, offset, limit int) ([]models.Contract, error) {
	m.mu.Lock()
	all := make([]models.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		all = append(all, c)
	}
	m.mu.Unlock()

	sortContracts(all)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(len(all), offset+limit)
	return all[offset:end], nil
}

func sortContracts(cs []models.Contract) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID.String() < cs[j].ID.String()
	})
}

func (m *Memory) GetReceipt(_ context.Context, id uuid.UUID) (*models.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, apperrors.NotFound("receipt", id.String())
	}
	return &r, nil
}

func (m *Memory) FindReceiptByPaymentID(_ context.Context, paymentID string) (*models.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.PaymentID == paymentID {
			return &r, nil
		}
	}
	return nil, apperrors.NotFound("receipt for payment", paymentID)
}

func (m *Memory) CreateReceipt(_ context.Context, r *models.PaymentReceipt) error {
	if m.BeforeCreateReceipt != nil {
		if err := m.BeforeCreateReceipt(r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.receipts {
		if existing.PaymentID == r.PaymentID || existing.ReceiptNumber == r.ReceiptNumber {
			return conflict("receipt", r.PaymentID)
		}
	}
	stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	m.receipts[r.ID] = *r
	return nil
}

func (m *Memory) UpdateReceiptStatus(_ context.Context, id uuid.UUID, status models.ReceiptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return apperrors.NotFound("receipt", id.String())
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	m.receipts[id] = r
	return nil
}

func (m *Memory) ListReceiptsByClientEmail(_ context.Context, email string) ([]models.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentReceipt
	for _, r := range m.receipts {
		if strings.EqualFold(r.ClientEmail, email) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

// Counts reports how many clients, pets, contracts and receipts are stored.
func (m *Memory) Counts() (clients, pets, contracts, receipts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients), len(m.pets), len(m.contracts), len(m.receipts)
}

func conflict(entity, key string) error {
	return fmt.Errorf("%s %s: %w", entity, key, apperrors.ErrConflict)
}
