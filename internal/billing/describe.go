package billing

import (
	"fmt"

	"github.com/unipet/billing-engine/internal/models"
)

// Describe renders a one-line status summary for customer-facing screens.
func Describe(r Result) string {
	switch r.CalculatedStatus {
	case models.ContractActive:
		if r.RenewalSoon {
			return fmt.Sprintf("Active, expires in %d days", r.DaysRemaining)
		}
		return "Active"
	case models.ContractInactive:
		if r.Rule == RuleGracePeriod {
			return fmt.Sprintf("Overdue, %d days past due", r.DaysPastDue)
		}
		return "Awaiting payment"
	case models.ContractSuspended:
		if r.Rule == RuleManualOverride {
			return "Suspended by support"
		}
		return fmt.Sprintf("Suspended, %d days past due", r.DaysPastDue)
	case models.ContractCancelled:
		if r.Rule == RuleManualOverride {
			return "Cancelled by support"
		}
		return "Cancelled for non-payment"
	default:
		return "Unknown"
	}
}

// ActionRequired tells the customer what to do next, or "" when nothing is due.
func ActionRequired(r Result) string {
	switch r.Rule {
	case RuleActive:
		if r.RenewalSoon {
			return fmt.Sprintf("Renew within %d days to keep coverage", r.DaysRemaining)
		}
		return ""
	case RuleGracePeriod:
		return fmt.Sprintf("Pay by %s to avoid suspension", r.GracePeriodEnds.Format("02/01/2006"))
	case RuleUnpaid:
		return "Complete the payment to activate the plan"
	case RuleSuspension:
		return "Pay the outstanding amount to reactivate the plan"
	case RuleCancellation:
		return "Start a new contract to restore coverage"
	case RuleManualOverride:
		return "Contact support"
	default:
		return "Contact support"
	}
}
