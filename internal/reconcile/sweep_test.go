package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/store"
)

// paid stores an active monthly contract whose payment landed daysAgo days
// before the fixture clock.
func (f *fixture) paid(t *testing.T, name string, daysAgo int) *models.Contract {
	t.Helper()
	c := f.contract(t, name, "pay-"+name, "order-"+name)
	received := f.gateway.Now.AddDate(0, 0, -daysAgo)
	c.ReceivedDate = &received
	c.ReceivedPaymentID = c.PaymentID
	c.ReturnCode = "00"
	c.Status = models.ContractActive
	c.PixQRCode = ""
	require.NoError(t, f.store.SaveContract(context.Background(), c))
	return c
}

func TestSweepAppliesDerivedStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	current := f.paid(t, "current", 10)
	grace := f.paid(t, "grace", 40)
	suspend := f.paid(t, "suspend", 30+16)
	cancel := f.paid(t, "cancel", 30+61)

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Evaluated)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 1, report.Transitions[models.ContractSuspended])
	assert.Equal(t, 1, report.Transitions[models.ContractCancelled])
	assert.Equal(t, 1, report.Transitions[models.ContractInactive])

	want := map[string]models.ContractStatus{
		current.ContractNumber: models.ContractActive,
		grace.ContractNumber:   models.ContractInactive,
		suspend.ContractNumber: models.ContractSuspended,
		cancel.ContractNumber:  models.ContractCancelled,
	}
	for _, c := range []*models.Contract{current, grace, suspend, cancel} {
		stored, err := f.store.GetContract(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, want[c.ContractNumber], stored.Status, c.ContractNumber)
		assert.Equal(t, models.StatusSourceSystem, stored.StatusSource)
	}
}

func TestSweepIsRepeatable(t *testing.T) {
	f := newFixture(t)
	f.paid(t, "suspend", 30+20)

	_, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Transitions)
}

func TestSweepLeavesManualStatusesAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.paid(t, "current", 5)
	require.NoError(t, f.store.UpdateContractStatus(ctx, c.ID, models.ContractSuspended, models.StatusSourceManual))

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	stored, err := f.store.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSuspended, stored.Status)
}

func TestSweepReactivatesSystemSuspensionAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.paid(t, "renewed", 3)
	require.NoError(t, f.store.UpdateContractStatus(ctx, c.ID, models.ContractSuspended, models.StatusSourceSystem))

	_, err := f.svc.Sweep(ctx)
	require.NoError(t, err)

	stored, err := f.store.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, stored.Status)
}

type failingUpdates struct {
	*store.Memory
	failFor string
}

func (s failingUpdates) UpdateContractStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus, source models.StatusSource) error {
	c, err := s.Memory.GetContract(ctx, id)
	if err == nil && c.PaymentID == s.failFor {
		return errors.New("row locked")
	}
	return s.Memory.UpdateContractStatus(ctx, id, status, source)
}

func TestSweepIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.paid(t, "locked", 30+20)
	other := f.paid(t, "other", 30+20)
	f.svc.store = failingUpdates{Memory: f.store, failFor: "pay-locked"}

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "row locked", report.Failures[0].Error)

	stored, err := f.store.GetContract(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSuspended, stored.Status)
}

func TestSweepPagesThroughAllContracts(t *testing.T) {
	f := newFixture(t)
	f.svc.pageSize = 2
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f.paid(t, name, 30+20)
	}

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, 5, report.Transitions[models.ContractSuspended])
}
