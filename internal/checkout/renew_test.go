package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/models"
)

func (f *fixture) seedContract(t *testing.T, receivedDaysAgo int) *models.Contract {
	t.Helper()
	ctx := context.Background()
	client := &models.Client{FullName: "Maria Souza", Email: "maria@example.com", TaxID: "12345678909"}
	require.NoError(t, f.store.CreateClient(ctx, client))
	pet := &models.Pet{ClientID: client.ID, PlanID: f.basic.ID, Name: "Thor", Species: "dog"}
	require.NoError(t, f.store.CreatePet(ctx, pet))

	received := f.gateway.Now.AddDate(0, 0, -receivedDaysAgo)
	c := &models.Contract{
		ClientID:          client.ID,
		PetID:             pet.ID,
		PlanID:            f.basic.ID,
		ContractNumber:    "UNIPET-1700000000000-0001",
		Status:            models.ContractActive,
		StatusSource:      models.StatusSourceSystem,
		BillingPeriod:     models.BillingMonthly,
		StartDate:         received,
		MonthlyAmount:     10000,
		PaymentMethod:     models.PaymentCreditCard,
		Installments:      1,
		PaymentID:         "pay-old",
		ReceivedPaymentID: "pay-old",
		ReturnCode:        "00",
		ReceivedDate:      &received,
	}
	require.NoError(t, f.store.CreateContract(ctx, c))
	return c
}

func renewRequest(c *models.Contract) RenewRequest {
	return RenewRequest{
		ContractID:   c.ID,
		Method:       models.PaymentCreditCard,
		Installments: 1,
		Card:         &gateway.Card{Number: "4111111111111111", Holder: "MARIA SOUZA", ExpirationDate: "12/2030", SecurityCode: "123"},
	}
}

func TestRenewBeforeExpirationExtendsCoverage(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 20)
	previousExpiration := c.ReceivedDate.AddDate(0, 0, 30)

	res, err := f.orch.Renew(context.Background(), renewRequest(c))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, res.Status)
	assert.Equal(t, int64(10000), res.Amount)
	require.NotNil(t, res.Receipt)

	stored, err := f.store.GetContract(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReceivedDate)
	assert.True(t, previousExpiration.Equal(*stored.ReceivedDate), "coverage continues from the previous expiration")
	assert.Equal(t, res.PaymentID, stored.PaymentID)
	assert.Equal(t, res.PaymentID, stored.ReceivedPaymentID)
	assert.Equal(t, "PS-"+res.PaymentID, stored.ProofOfSale)
	assert.Equal(t, models.ContractActive, stored.Status)
}

func TestRenewAfterExpirationStartsAtPayment(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 45)

	_, err := f.orch.Renew(context.Background(), renewRequest(c))
	require.NoError(t, err)

	stored, err := f.store.GetContract(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.gateway.Now, *stored.ReceivedDate)
}

func TestRenewSwitchesToAnnual(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 45)
	req := renewRequest(c)
	req.BillingPeriod = models.BillingAnnual

	_, err := f.orch.Renew(context.Background(), req)
	require.NoError(t, err)

	stored, err := f.store.GetContract(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillingAnnual, stored.BillingPeriod)
	assert.Equal(t, int64(10000), stored.AnnualAmount)
	assert.Zero(t, stored.MonthlyAmount)
}

func TestRenewPendingKeepsCoverage(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 20)
	f.gateway.NextStatus = gateway.StatusPending
	req := renewRequest(c)
	req.Method = models.PaymentPix
	req.Card = nil
	req.Installments = 0

	res, err := f.orch.Renew(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res.Receipt)
	require.NotNil(t, res.Pix)

	stored, err := f.store.GetContract(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, c.ReceivedDate.Equal(*stored.ReceivedDate))
	assert.Equal(t, "00", stored.ReturnCode, "the funding payment's audit trail stays")
	assert.Equal(t, "pay-old", stored.ReceivedPaymentID)
	assert.Equal(t, res.PaymentID, stored.PaymentID)
	assert.Equal(t, res.OrderID, stored.OrderID)
	assert.NotEmpty(t, stored.PixQRCodeString)
}

func TestRenewDeclinedLeavesContractUntouched(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 20)
	f.gateway.NextStatus = gateway.StatusDeclined

	_, err := f.orch.Renew(context.Background(), renewRequest(c))
	assert.ErrorIs(t, err, apperrors.ErrGatewayDeclined)

	stored, err := f.store.GetContract(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-old", stored.PaymentID)
}

func TestRenewRejectsManualOverride(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 20)
	require.NoError(t, f.store.UpdateContractStatus(context.Background(), c.ID, models.ContractCancelled, models.StatusSourceManual))

	_, err := f.orch.Renew(context.Background(), renewRequest(c))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.gateway.CreateCount())
}

func TestRenewUnknownContract(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Renew(context.Background(), RenewRequest{Method: models.PaymentPix})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRenewChargesSinglePetBasePrice(t *testing.T) {
	f := newFixture(t)
	c := f.seedContract(t, 10)
	c.MonthlyAmount = 9500
	require.NoError(t, f.store.SaveContract(context.Background(), c))

	res, err := f.orch.Renew(context.Background(), renewRequest(c))
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.Amount)
	assert.Equal(t, int64(10000), f.gateway.CreateCalls[0].Amount)
}
