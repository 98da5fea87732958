package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/models"
)

func TestMemoryClientUniqueTaxID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := &models.Client{FullName: "Ana", TaxID: "12345678909", Email: "Ana@Example.com"}
	require.NoError(t, m.CreateClient(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	err := m.CreateClient(ctx, &models.Client{FullName: "Ana 2", TaxID: "12345678909"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	found, err := m.FindClientByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = m.FindClientByTaxID(ctx, "00000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryReceiptUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateReceipt(ctx, &models.PaymentReceipt{PaymentID: "pay-1", ReceiptNumber: "R1"}))
	assert.ErrorIs(t, m.CreateReceipt(ctx, &models.PaymentReceipt{PaymentID: "pay-1", ReceiptNumber: "R2"}), apperrors.ErrConflict)
	assert.ErrorIs(t, m.CreateReceipt(ctx, &models.PaymentReceipt{PaymentID: "pay-2", ReceiptNumber: "R1"}), apperrors.ErrConflict)

	r, err := m.FindReceiptByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NoError(t, m.UpdateReceiptStatus(ctx, r.ID, models.ReceiptDownloaded))
	r, err = m.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptDownloaded, r.Status)
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.WithinTransaction(ctx, func(tx Store) error {
		require.NoError(t, tx.CreatePet(ctx, &models.Pet{Name: "Rex"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, pets, _, _ := m.Counts()
	assert.Zero(t, pets)

	err = m.WithinTransaction(ctx, func(tx Store) error {
		return tx.CreatePet(ctx, &models.Pet{Name: "Rex"})
	})
	require.NoError(t, err)
	_, pets, _, _ = m.Counts()
	assert.Equal(t, 1, pets)
}

func TestMemoryContractsListing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.CreateContract(ctx, &models.Contract{
			ContractNumber: fmt.Sprintf("UNIPET-%d", i),
			PaymentID:      map[bool]string{true: "pay-even", false: "pay-odd"}[i%2 == 0],
		}))
	}
	assert.ErrorIs(t, m.CreateContract(ctx, &models.Contract{ContractNumber: "UNIPET-1"}), apperrors.ErrConflict)

	even, err := m.ListContractsByPaymentID(ctx, "pay-even")
	require.NoError(t, err)
	assert.Len(t, even, 3)

	page, err := m.ListContracts(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = m.ListContracts(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, m.UpdateContractStatus(ctx, even[0].ID, models.ContractSuspended, models.StatusSourceSystem))
	got, err := m.GetContract(ctx, even[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSuspended, got.Status)
	assert.Equal(t, models.StatusSourceSystem, got.StatusSource)

	assert.ErrorIs(t, m.UpdateContractStatus(ctx, uuid.New(), models.ContractActive, models.StatusSourceSystem), apperrors.ErrNotFound)
}

func TestMemoryContractsByFundingPayment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	received := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	renewing := &models.Contract{
		ContractNumber:    "UNIPET-renewing",
		PaymentID:         "pay-new",
		ReceivedPaymentID: "pay-old",
		ReceivedDate:      &received,
	}
	require.NoError(t, m.CreateContract(ctx, renewing))
	require.NoError(t, m.CreateContract(ctx, &models.Contract{ContractNumber: "UNIPET-other", PaymentID: "pay-other"}))

	for _, id := range []string{"pay-new", "pay-old"} {
		got, err := m.ListContractsByPaymentID(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 1, id)
		assert.Equal(t, renewing.ID, got[0].ID)
	}

	none, err := m.ListContractsByPaymentID(ctx, "pay-missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryHooksAbortWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.BeforeCreateContract = func(*models.Contract) error { return errors.New("disk full") }

	err := m.CreateContract(ctx, &models.Contract{ContractNumber: "X"})
	assert.EqualError(t, err, "disk full")
	_, _, contracts, _ := m.Counts()
	assert.Zero(t, contracts)
}

func TestTranslateErrors(t *testing.T) {
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound, "plan", "x"), apperrors.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey, "client", "x"), apperrors.ErrConflict)
	assert.ErrorIs(t, translate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), "receipt", "x"), apperrors.ErrConflict)
	assert.NotErrorIs(t, translate(&pgconn.PgError{Code: "23503"}, "pet", "x"), apperrors.ErrConflict)
	assert.NoError(t, translate(nil, "pet", "x"))
}
