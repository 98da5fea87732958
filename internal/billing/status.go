// Package billing derives a contract's effective status from its billing
// dates and the gateway's return code. Everything here is pure: callers pass
// the contract snapshot and the evaluation instant.
package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unipet/billing-engine/internal/calendar"
	"github.com/unipet/billing-engine/internal/models"
)

const (
	GracePeriodDays     = 15
	CancellationDays    = 60
	MonthlyCoverageDays = 30
	AnnualCoverageDays  = 365
	RenewalWarningDays  = 5
)

// IsSuccessReturnCode reports whether a gateway return code denotes an
// approved payment.
func IsSuccessReturnCode(code string) bool {
	return code == "00" || code == "0"
}

// Rule names the decision arm that produced a Result.
type Rule string

const (
	RuleManualOverride Rule = "manual_override"
	RuleActive         Rule = "active"
	RuleGracePeriod    Rule = "grace_period"
	RuleUnpaid         Rule = "unpaid"
	RuleSuspension     Rule = "suspension"
	RuleCancellation   Rule = "cancellation"
	RuleUndefined      Rule = "undefined"
)

type Result struct {
	CalculatedStatus models.ContractStatus `json:"calculated_status"`
	IsOverdue        bool                  `json:"is_overdue"`
	DaysPastDue      int                   `json:"days_past_due"`
	NextDueDate      *time.Time            `json:"next_due_date,omitempty"`
	GracePeriodEnds  *time.Time            `json:"grace_period_ends,omitempty"`
	ShouldSuspend    bool                  `json:"should_suspend"`
	ShouldCancel     bool                  `json:"should_cancel"`
	StatusReason     string                `json:"status_reason"`
	ExpirationDate   *time.Time            `json:"expiration_date,omitempty"`
	DaysRemaining    int                   `json:"days_remaining"`
	IsExpired        bool                  `json:"is_expired"`
	RenewalSoon      bool                  `json:"renewal_soon"`
	Rule             Rule                  `json:"rule"`
}

// CoverageDays is the length of one paid period.
func CoverageDays(period models.BillingPeriod) int {
	if period == models.BillingAnnual {
		return AnnualCoverageDays
	}
	return MonthlyCoverageDays
}

// ExpirationDate is receivedDate plus one coverage period, or nil when the
// contract was never paid.
func ExpirationDate(c *models.Contract) *time.Time {
	if c.ReceivedDate == nil {
		return nil
	}
	exp := calendar.AddDays(*c.ReceivedDate, CoverageDays(c.BillingPeriod))
	return &exp
}

// facts are the values every rule reads, computed once per evaluation.
type facts struct {
	contract            *models.Contract
	now                 time.Time
	expiration          *time.Time
	daysRemaining       int
	expired             bool
	paid                bool
	daysSinceExpiration int
}

func gather(c *models.Contract, now time.Time) *facts {
	f := &facts{contract: c, now: now, expired: true}
	f.expiration = ExpirationDate(c)
	if f.expiration != nil {
		f.daysRemaining = max(0, calendar.DaysUntil(now, *f.expiration))
		f.expired = !now.Before(*f.expiration)
		f.daysSinceExpiration = calendar.DaysSince(*f.expiration, now)
	}
	// A success code without a received date is not a confirmed payment.
	f.paid = IsSuccessReturnCode(c.ReturnCode) && f.expiration != nil
	return f
}

type rule struct {
	name  Rule
	apply func(f *facts) (Result, bool)
}

// rules are tried in order; the first match wins.
var rules = []rule{
	{RuleManualOverride, manualOverride},
	{RuleActive, activeCoverage},
	{RuleGracePeriod, gracePeriod},
	{RuleUnpaid, unpaid},
	{RuleSuspension, suspension},
	{RuleCancellation, cancellation},
}

// Evaluate derives the contract's status at now.
func Evaluate(c *models.Contract, now time.Time) Result {
	f := gather(c, now)
	for _, r := range rules {
		if res, ok := r.apply(f); ok {
			return f.finish(res, r.name)
		}
	}
	return f.finish(Result{
		CalculatedStatus: models.ContractInactive,
		StatusReason:     "undefined state",
	}, RuleUndefined)
}

func (f *facts) finish(res Result, name Rule) Result {
	res.Rule = name
	res.ExpirationDate = f.expiration
	res.DaysRemaining = f.daysRemaining
	res.IsExpired = f.expired
	return res
}

func manualOverride(f *facts) (Result, bool) {
	if !f.contract.IsManualOverride() {
		return Result{}, false
	}
	res := Result{CalculatedStatus: f.contract.Status}
	if f.contract.Status == models.ContractSuspended {
		res.IsOverdue = true
		res.StatusReason = "contract manually suspended"
	} else {
		res.StatusReason = "contract manually cancelled"
	}
	return res, true
}

func activeCoverage(f *facts) (Result, bool) {
	if !f.paid || f.expired {
		return Result{}, false
	}
	res := Result{
		CalculatedStatus: models.ContractActive,
		NextDueDate:      f.expiration,
		StatusReason:     fmt.Sprintf("payment current, %d days of coverage remaining", f.daysRemaining),
	}
	if f.daysRemaining <= RenewalWarningDays {
		res.RenewalSoon = true
		res.StatusReason += ", renewal needed soon"
	}
	return res, true
}

func gracePeriod(f *facts) (Result, bool) {
	if !f.paid || f.daysSinceExpiration > GracePeriodDays {
		return Result{}, false
	}
	ends := calendar.AddDays(*f.expiration, GracePeriodDays)
	return Result{
		CalculatedStatus: models.ContractInactive,
		IsOverdue:        true,
		DaysPastDue:      f.daysSinceExpiration,
		NextDueDate:      f.expiration,
		GracePeriodEnds:  &ends,
		StatusReason: fmt.Sprintf("coverage expired %d days ago, %d grace days left",
			f.daysSinceExpiration, GracePeriodDays-f.daysSinceExpiration),
	}, true
}

func unpaid(f *facts) (Result, bool) {
	if f.paid {
		return Result{}, false
	}
	return Result{
		CalculatedStatus: models.ContractInactive,
		IsOverdue:        true,
		StatusReason:     "payment not completed or not approved",
	}, true
}

func suspension(f *facts) (Result, bool) {
	if f.daysSinceExpiration <= GracePeriodDays || f.daysSinceExpiration > CancellationDays {
		return Result{}, false
	}
	return Result{
		CalculatedStatus: models.ContractSuspended,
		IsOverdue:        true,
		DaysPastDue:      f.daysSinceExpiration,
		NextDueDate:      f.expiration,
		ShouldSuspend:    true,
		StatusReason:     fmt.Sprintf("coverage expired %d days ago, grace period exhausted", f.daysSinceExpiration),
	}, true
}

func cancellation(f *facts) (Result, bool) {
	if f.daysSinceExpiration <= CancellationDays {
		return Result{}, false
	}
	return Result{
		CalculatedStatus: models.ContractCancelled,
		IsOverdue:        true,
		DaysPastDue:      f.daysSinceExpiration,
		NextDueDate:      f.expiration,
		ShouldCancel:     true,
		StatusReason: fmt.Sprintf("coverage expired %d days ago, past the %d day cancellation limit",
			f.daysSinceExpiration, CancellationDays),
	}, true
}

// EvaluateMany evaluates a batch of contracts at the same instant.
func EvaluateMany(contracts []models.Contract, now time.Time) map[uuid.UUID]Result {
	out := make(map[uuid.UUID]Result, len(contracts))
	for i := range contracts {
		out[contracts[i].ID] = Evaluate(&contracts[i], now)
	}
	return out
}

// RenewalAnchor is the instant a newly confirmed payment starts covering.
// Paying before the current coverage ends extends it instead of overlapping.
func RenewalAnchor(c *models.Contract, now time.Time) time.Time {
	if !IsSuccessReturnCode(c.ReturnCode) {
		return now
	}
	if exp := ExpirationDate(c); exp != nil && exp.After(now) {
		return *exp
	}
	return now
}
