package billing

import (
	"time"

	"github.com/unipet/billing-engine/internal/calendar"
	"github.com/unipet/billing-engine/internal/models"
)

// Due dates are whole days in the start date's location. A monthly contract
// is due on start's day of month, clamped to shorter months; an annual one on
// start's anniversary, with Feb 29 falling on Feb 28 in non-leap years.

func periodDate(start time.Time, period models.BillingPeriod, year int, month time.Month) time.Time {
	if period == models.BillingAnnual {
		return calendar.Anniversary(start, year)
	}
	return calendar.ClampedDate(year, month, start.Day(), start.Location())
}

func shift(start time.Time, period models.BillingPeriod, due time.Time, cycles int) time.Time {
	if cycles == 0 {
		return due
	}
	if period == models.BillingAnnual {
		return calendar.Anniversary(start, due.Year()+cycles)
	}
	return calendar.AddMonthsClamped(due, cycles, start.Day())
}

// CurrentPeriodDueDate is the due date falling in now's month (monthly) or
// year (annual), whether or not it has passed.
func CurrentPeriodDueDate(start time.Time, period models.BillingPeriod, now time.Time) time.Time {
	now = now.In(start.Location())
	return periodDate(start, period, now.Year(), now.Month())
}

// NextDueDate is the first due date on or after today, moved forward by
// cycleOffset periods. Before the contract starts it is the start date.
func NextDueDate(start time.Time, period models.BillingPeriod, now time.Time, cycleOffset int) time.Time {
	today := calendar.StartOfDay(now.In(start.Location()))
	first := calendar.StartOfDay(start)

	due := periodDate(start, period, today.Year(), today.Month())
	if today.After(due) {
		due = shift(start, period, due, 1)
	}
	if due.Before(first) {
		due = first
	}
	return shift(start, period, due, cycleOffset)
}

// LastDueDate is the most recent due date on or before today, never earlier
// than the start date.
func LastDueDate(start time.Time, period models.BillingPeriod, now time.Time) time.Time {
	today := calendar.StartOfDay(now.In(start.Location()))
	first := calendar.StartOfDay(start)

	due := periodDate(start, period, today.Year(), today.Month())
	if today.Before(due) {
		due = shift(start, period, due, -1)
	}
	if due.Before(first) {
		return first
	}
	return due
}

// IsPaymentCurrent reports whether the contract's last confirmed payment
// covers the billing period now falls in.
func IsPaymentCurrent(c *models.Contract, now time.Time) bool {
	if c.ReceivedDate == nil || !IsSuccessReturnCode(c.ReturnCode) {
		return false
	}
	periodStart := LastDueDate(c.StartDate, c.BillingPeriod, now)
	return !calendar.StartOfDay(c.ReceivedDate.In(c.StartDate.Location())).Before(periodStart)
}
