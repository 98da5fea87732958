// Package calendar holds the date arithmetic shared by expiration and
// due-date calculations: month lengths, leap years and day-of-month clamping.
package calendar

import "time"

const Day = 24 * time.Hour

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// ClampedDate returns midnight of year/month/day in loc. Month overflow is
// normalized first, then day is clamped to the length of the resulting month,
// so (2025, January+1, 31) is 2025-02-28.
func ClampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	year, month = first.Year(), first.Month()
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// AddDays moves t by whole calendar days, keeping the wall-clock time.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// AddMonthsClamped moves t by months, keeping anchorDay when the target month
// is long enough and clamping to the month's last day otherwise.
func AddMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	return ClampedDate(t.Year(), t.Month()+time.Month(months), anchorDay, t.Location())
}

// Anniversary returns the occurrence of start's month/day in year. A Feb 29
// start maps to Feb 28 in non-leap years.
func Anniversary(start time.Time, year int) time.Time {
	return ClampedDate(year, start.Month(), start.Day(), start.Location())
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil is ceil((to-from)/day).
func DaysUntil(from, to time.Time) int {
	d := to.Sub(from)
	n := int(d / Day)
	if d%Day != 0 && d > 0 {
		n++
	}
	return n
}

// DaysSince is floor((to-from)/day).
func DaysSince(from, to time.Time) int {
	d := to.Sub(from)
	n := int(d / Day)
	if d%Day != 0 && d < 0 {
		n--
	}
	return n
}
