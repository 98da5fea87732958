package receipts

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/gateway/gatewaytest"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/objectstore"
	"github.com/unipet/billing-engine/internal/store"
)

type fixture struct {
	gen     *Generator
	store   *store.Memory
	gateway *gatewaytest.Fake
	objects *objectstore.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemory(),
		gateway: gatewaytest.New(),
		objects: objectstore.NewMemory(),
	}
	renderer := NewPDFRenderer(Company{Name: "UNIPET PLAN", TaxID: "12.345.678/0001-90", SupportEmail: "contato@unipetplan.com.br"})
	renderer.compress = false
	f.gen = NewGenerator(f.store, f.gateway, f.objects, renderer, Options{URLTTL: 10 * time.Minute})
	f.gen.now = func() time.Time { return time.Date(2025, 3, 10, 13, 5, 0, 0, time.UTC) }
	return f
}

func (f *fixture) charge(t *testing.T, status gateway.Status) string {
	t.Helper()
	f.gateway.NextStatus = status
	c, err := f.gateway.CreateCharge(context.Background(), &gateway.ChargeRequest{
		OrderID:      uuid.NewString(),
		Amount:       28500,
		Installments: 1,
		Method:       models.PaymentCreditCard,
	})
	require.NoError(t, err)
	return c.PaymentID
}

func input(paymentID string) Input {
	return Input{
		PaymentID:     paymentID,
		ClientName:    "Maria Souza",
		ClientEmail:   "maria@example.com",
		ClientTaxID:   "12345678909",
		PlanName:      "BASIC",
		BillingPeriod: models.BillingMonthly,
		Pets: []models.ReceiptPetLine{
			{Name: "Thor", Species: "dog", PlanName: "BASIC", BaseAmount: 10000, Amount: 10000},
			{Name: "Luna", Species: "cat", PlanName: "BASIC", BaseAmount: 10000, DiscountPercent: 5, Amount: 9500},
			{Name: "Mel", Species: "dog", PlanName: "BASIC", BaseAmount: 10000, DiscountPercent: 10, Amount: 9000},
		},
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := f.charge(t, gateway.StatusApproved)

	first, err := f.gen.Generate(ctx, input(paymentID))
	require.NoError(t, err)
	second, err := f.gen.Generate(ctx, input(paymentID))
	require.NoError(t, err)

	assert.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.objects.Len())
	assert.Equal(t, 1, f.objects.Puts())
	_, _, _, receipts := f.store.Counts()
	assert.Equal(t, 1, receipts)
}

func TestGenerateSnapshotsGatewayData(t *testing.T) {
	f := newFixture(t)
	paymentID := f.charge(t, gateway.StatusApproved)

	r, err := f.gen.Generate(context.Background(), input(paymentID))
	require.NoError(t, err)

	assert.Equal(t, int64(28500), r.PaymentAmount)
	assert.Equal(t, f.gateway.Now, r.PaymentDate)
	assert.Equal(t, "PS-"+paymentID, r.ProofOfSale)
	assert.Equal(t, "AUTH-"+paymentID, r.AuthorizationCode)
	assert.Equal(t, "TID-"+paymentID, r.TransactionID)
	assert.Equal(t, "00", r.ReturnCode)
	assert.Equal(t, "Thor, Luna, Mel", r.PetName)
	assert.Equal(t, "receipts/"+r.ReceiptNumber+".pdf", r.ObjectKey)
	assert.Equal(t, "comprovante_"+r.ReceiptNumber+".pdf", r.FileName)
	assert.Equal(t, models.ReceiptGenerated, r.Status)

	data, err := f.objects.Get(context.Background(), r.ObjectKey)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, bytes.Contains(data, []byte(r.ReceiptNumber)), "document carries the stored receipt number")
}

func TestGenerateConcurrentCallsProduceOneReceipt(t *testing.T) {
	f := newFixture(t)
	paymentID := f.charge(t, gateway.StatusApproved)

	const callers = 8
	numbers := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.gen.Generate(context.Background(), input(paymentID))
			if assert.NoError(t, err) {
				numbers[i] = r.ReceiptNumber
			}
		}()
	}
	wg.Wait()

	for _, n := range numbers {
		assert.Equal(t, numbers[0], n)
	}
	assert.Equal(t, 1, f.objects.Len())
	_, _, _, receipts := f.store.Counts()
	assert.Equal(t, 1, receipts)
}

func TestGenerateRefusesUnapprovedPayment(t *testing.T) {
	f := newFixture(t)
	paymentID := f.charge(t, gateway.StatusPending)

	_, err := f.gen.Generate(context.Background(), input(paymentID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentNotApproved)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.objects.Len())
	_, _, _, receipts := f.store.Counts()
	assert.Equal(t, 0, receipts)
}

func TestGenerateRequiresPaymentID(t *testing.T) {
	f := newFixture(t)
	_, err := f.gen.Generate(context.Background(), Input{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.gateway.QueryCount())
}

func TestGenerateUploadFailureWritesNoRow(t *testing.T) {
	f := newFixture(t)
	paymentID := f.charge(t, gateway.StatusApproved)
	f.objects.PutErr = errors.New("bucket unreachable")

	_, err := f.gen.Generate(context.Background(), input(paymentID))
	require.Error(t, err)
	_, _, _, receipts := f.store.Counts()
	assert.Equal(t, 0, receipts)

	f.objects.PutErr = nil
	r, err := f.gen.Generate(context.Background(), input(paymentID))
	require.NoError(t, err)
	assert.NotEmpty(t, r.ReceiptNumber)
}

func TestGenerateConflictReusesWinningRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := f.charge(t, gateway.StatusApproved)

	winner := &models.PaymentReceipt{
		PaymentID:     paymentID,
		ReceiptNumber: "UNIPET20250310T130000WIN1",
		PaymentAmount: 28500,
		PaymentDate:   f.gateway.Now,
		PaymentMethod: models.PaymentCreditCard,
		ObjectKey:     objectKey("UNIPET20250310T130000WIN1"),
		FileName:      fileName("UNIPET20250310T130000WIN1"),
		Status:        models.ReceiptGenerated,
	}
	f.store.BeforeCreateReceipt = func(*models.PaymentReceipt) error {
		f.store.BeforeCreateReceipt = nil
		return f.store.CreateReceipt(ctx, winner)
	}

	r, err := f.gen.Generate(ctx, input(paymentID))
	require.NoError(t, err)
	assert.Equal(t, winner.ReceiptNumber, r.ReceiptNumber)
	assert.Equal(t, 0, f.objects.Len(), "losing upload is removed")
}

func TestOpenReturnsSignedURLAndMarksDownloaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.gen.Generate(ctx, input(f.charge(t, gateway.StatusApproved)))
	require.NoError(t, err)

	d, err := f.gen.Open(ctx, r.ID)
	require.NoError(t, err)
	assert.Contains(t, d.URL, "memory://")
	assert.Nil(t, d.Data)
	assert.False(t, d.Regenerated)

	stored, err := f.store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptDownloaded, stored.Status)
}

func TestOpenStreamsWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.gen.stream = true
	ctx := context.Background()
	r, err := f.gen.Generate(ctx, input(f.charge(t, gateway.StatusApproved)))
	require.NoError(t, err)

	d, err := f.gen.Open(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, d.URL)
	assert.True(t, bytes.HasPrefix(d.Data, []byte("%PDF")))
}

func TestOpenRegeneratesMissingObjectWithoutGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.gen.Generate(ctx, input(f.charge(t, gateway.StatusApproved)))
	require.NoError(t, err)
	require.NoError(t, f.objects.Delete(ctx, r.ObjectKey))
	queries := f.gateway.QueryCount()

	d, err := f.gen.Open(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, d.Regenerated)
	assert.True(t, bytes.Contains(d.Data, []byte(r.ReceiptNumber)))
	assert.Equal(t, queries, f.gateway.QueryCount())
	assert.Equal(t, 1, f.objects.Len(), "regenerated document is uploaded again")
}

func TestOpenUnknownReceipt(t *testing.T) {
	f := newFixture(t)
	_, err := f.gen.Open(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMarkSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.gen.Generate(ctx, input(f.charge(t, gateway.StatusApproved)))
	require.NoError(t, err)

	sent, err := f.gen.MarkSent(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptSent, sent.Status)

	again, err := f.gen.MarkSent(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptSent, again.Status)

	_, err = f.gen.Open(ctx, r.ID)
	require.NoError(t, err)
	stored, err := f.store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptSent, stored.Status, "a sent receipt never moves back to downloaded")
}

func TestListByClientEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.gen.Generate(ctx, input(f.charge(t, gateway.StatusApproved)))
	require.NoError(t, err)

	list, err := f.gen.ListByClientEmail(ctx, "  MARIA@example.com ")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.gen.ListByClientEmail(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGenerateForContracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := f.charge(t, gateway.StatusApproved)

	client := &models.Client{FullName: "Maria Souza", Email: "maria@example.com", TaxID: "12345678909"}
	require.NoError(t, f.store.CreateClient(ctx, client))
	plan := &models.Plan{Name: "BASIC", Family: "BASIC", BasePrice: 10000, IsActive: true}
	require.NoError(t, f.store.CreatePlan(ctx, plan))
	pet := &models.Pet{ClientID: client.ID, PlanID: plan.ID, Name: "Luna", Species: "cat"}
	require.NoError(t, f.store.CreatePet(ctx, pet))
	contract := models.Contract{
		ID: uuid.New(), ClientID: client.ID, PetID: pet.ID, PlanID: plan.ID,
		BillingPeriod: models.BillingMonthly, MonthlyAmount: 9500,
		PaymentMethod: models.PaymentCreditCard, PaymentID: paymentID,
	}

	r, err := f.gen.GenerateForContracts(ctx, paymentID, []models.Contract{contract})
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", r.ClientName)
	assert.Equal(t, "Luna", r.PetName)
	assert.Equal(t, "BASIC", r.PlanName)
	assert.Contains(t, string(r.PetLines), `"discount_percent":5`)
	require.NotNil(t, r.ContractID)
	assert.Equal(t, contract.ID, *r.ContractID)
}

func TestNewNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^UNIPET\d{8}T\d{6}[A-Z0-9]{4}$`)
	n := NewNumber(time.Date(2025, 3, 10, 10, 0, 0, 0, time.FixedZone("BRT", -3*60*60)))
	assert.Regexp(t, re, n)
	assert.Contains(t, n, "20250310T130000")
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,05", formatBRL(5))
	assert.Equal(t, "R$ 285,00", formatBRL(28500))
	assert.Equal(t, "R$ 1.234,56", formatBRL(123456))
	assert.Equal(t, "R$ 1.000.000,00", formatBRL(100000000))
}

func TestFormatTaxID(t *testing.T) {
	assert.Equal(t, "123.456.789-09", formatTaxID("12345678909"))
	assert.Equal(t, "12.345.678/0001-90", formatTaxID("12345678000190"))
	assert.Equal(t, "abc", formatTaxID("abc"))
}
