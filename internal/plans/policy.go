package plans

import (
	"github.com/unipet/billing-engine/internal/apperrors"
	"github.com/unipet/billing-engine/internal/models"
)

// Selection is what the customer asked to buy.
type Selection struct {
	BillingPeriod models.BillingPeriod
	Method        models.PaymentMethod
	Installments  int
	PetCount      int
}

// Validate checks a selection against the family's rules. It never has side
// effects, so checkout runs it before touching the store or the gateway.
func (p FamilyPolicy) Validate(sel Selection) error {
	if sel.PetCount < 1 {
		return apperrors.Invalid("pets", "at least one pet is required")
	}
	if !sel.BillingPeriod.Valid() {
		return apperrors.Invalid("billing_period", "unsupported billing period %q", sel.BillingPeriod)
	}
	if p.AnnualOnly && sel.BillingPeriod != models.BillingAnnual {
		return apperrors.Invalid("billing_period", "plan family %s is only sold with annual billing", p.Family)
	}

	switch sel.Method {
	case models.PaymentPix:
		if sel.Installments > 1 {
			return apperrors.Invalid("installments", "PIX payments are single installment")
		}
	case models.PaymentCreditCard:
		if sel.Installments < 1 {
			return apperrors.Invalid("installments", "at least one installment is required")
		}
		if sel.Installments > p.MaxCardInstallments {
			return apperrors.Invalid("installments", "plan family %s allows at most %d installments", p.Family, p.MaxCardInstallments)
		}
	default:
		return apperrors.Invalid("payment_method", "unsupported payment method %q", sel.Method)
	}
	return nil
}
