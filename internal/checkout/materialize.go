package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/gateway"
	"github.com/unipet/billing-engine/internal/models"
	"github.com/unipet/billing-engine/internal/plans"
	"github.com/unipet/billing-engine/internal/store"
)

const contractNumberAttempts = 3

// ContractNumber formats UNIPET-<unix ms>-<first 4 chars of the pet id>.
func ContractNumber(at time.Time, petID uuid.UUID) string {
	return fmt.Sprintf("UNIPET-%d-%s", at.UnixMilli(), strings.ToUpper(petID.String()[:4]))
}

// materialize writes one pet and its contract in a single transaction. A
// contract number collision retries with a fresh pet id and timestamp.
func (o *Orchestrator) materialize(ctx context.Context, client *models.Client, plan *models.Plan, in PetInput, line plans.Line, req *Request, charge *gateway.Charge, now time.Time) (*models.Pet, *models.Contract, error) {
	var lastErr error
	for attempt := range contractNumberAttempts {
		pet := &models.Pet{
			ID:        uuid.New(),
			ClientID:  client.ID,
			PlanID:    plan.ID,
			Name:      in.Name,
			Species:   in.Species,
			Breed:     in.Breed,
			Sex:       in.Sex,
			BirthDate: in.BirthDate,
			WeightKg:  in.WeightKg,
		}
		contract := newContract(client, plan, pet, line, req, charge, now)
		contract.ContractNumber = ContractNumber(now.Add(time.Duration(attempt)*time.Millisecond), pet.ID)

		err := o.store.WithinTransaction(ctx, func(tx store.Store) error {
			if err := tx.CreatePet(ctx, pet); err != nil {
				return fmt.Errorf("failed to create pet: %w", err)
			}
			if err := tx.CreateContract(ctx, contract); err != nil {
				return fmt.Errorf("failed to create contract: %w", err)
			}
			return nil
		})
		if err == nil {
			return pet, contract, nil
		}
		lastErr = err
		if !apperrors.IsConflict(err) {
			break
		}
	}
	return nil, nil, lastErr
}

func newContract(client *models.Client, plan *models.Plan, pet *models.Pet, line plans.Line, req *Request, charge *gateway.Charge, now time.Time) *models.Contract {
	c := &models.Contract{
		ID:            uuid.New(),
		ClientID:      client.ID,
		PetID:         pet.ID,
		PlanID:        plan.ID,
		Status:        models.ContractInactive,
		StatusSource:  models.StatusSourceSystem,
		BillingPeriod: req.BillingPeriod,
		StartDate:     now,
		PaymentMethod: req.Method,
		Installments:  max(1, req.Installments),
		OrderID:       charge.OrderID,
		PaymentID:     charge.PaymentID,
	}
	setAmount(c, line.Amount)
	anchor := now
	if charge.ReceivedDate != nil {
		anchor = charge.ReceivedDate.UTC()
	}
	applyCharge(c, charge, anchor)
	return c
}

func setAmount(c *models.Contract, amount int64) {
	c.MonthlyAmount, c.AnnualAmount = 0, 0
	if c.BillingPeriod == models.BillingAnnual {
		c.AnnualAmount = amount
	} else {
		c.MonthlyAmount = amount
	}
}

// applyCharge copies the gateway's result onto the contract. Audit fields are
// stored verbatim, except that a charge still in flight leaves alone the ones
// of the payment funding current coverage. Only an approved charge starts
// coverage, at anchor.
func applyCharge(c *models.Contract, charge *gateway.Charge, anchor time.Time) {
	c.OrderID = charge.OrderID
	c.PaymentID = charge.PaymentID
	if charge.Pix != nil {
		c.PixQRCode = charge.Pix.QRCodeBase64
		c.PixQRCodeString = charge.Pix.QRCodeString
	}
	succeeded := charge.Succeeded()
	if !succeeded && c.ReceivedDate != nil {
		return
	}
	c.ReturnCode = charge.ReturnCode
	c.ReturnMessage = charge.ReturnMessage
	c.ProofOfSale = charge.ProofOfSale
	c.AuthorizationCode = charge.AuthorizationCode
	c.TransactionID = charge.TransactionID
	if !succeeded {
		return
	}
	received := anchor
	c.ReceivedDate = &received
	c.ReceivedPaymentID = charge.PaymentID
	c.Status = models.ContractActive
	c.StatusSource = models.StatusSourceSystem
	c.PixQRCode, c.PixQRCodeString = "", ""
}
