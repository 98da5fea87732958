package calendar

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(2024))
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2025))
}

func TestDaysInMonthMatchesTimePackage(t *testing.T) {
	for year := 1890; year <= 2110; year++ {
		for m := time.January; m <= time.December; m++ {
			want := time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
			require.Equal(t, want, DaysInMonth(year, m), "%d-%02d", year, m)
		}
	}
}

func TestClampedDate(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  string
	}{
		{"jan 31 into feb non-leap", 2025, time.February, 31, "2025-02-28"},
		{"jan 31 into feb leap", 2024, time.February, 31, "2024-02-29"},
		{"april has 30 days", 2025, time.April, 31, "2025-04-30"},
		{"month overflow", 2025, time.January + 13, 31, "2026-02-28"},
		{"day below one", 2025, time.March, 0, "2025-03-01"},
		{"in range", 2025, time.July, 15, "2025-07-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampedDate(tt.year, tt.month, tt.day, time.UTC)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestAnniversaryFeb29(t *testing.T) {
	start := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-28", Anniversary(start, 2025).Format("2006-01-02"))
	assert.Equal(t, "2028-02-29", Anniversary(start, 2028).Format("2006-01-02"))
}

func TestAddMonthsClampedNeverOverflows(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		start := time.Date(1970+rng.Intn(200), time.Month(1+rng.Intn(12)), 1+rng.Intn(31), 0, 0, 0, 0, time.UTC)
		months := rng.Intn(400) - 200
		got := AddMonthsClamped(start, months, start.Day())

		wantMonth := time.Date(start.Year(), start.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
		require.Equal(t, wantMonth.Month(), got.Month(), "start=%s months=%d", start, months)
		require.Equal(t, wantMonth.Year(), got.Year())

		wantDay := start.Day()
		if last := DaysInMonth(got.Year(), got.Month()); wantDay > last {
			wantDay = last
		}
		require.Equal(t, wantDay, got.Day())
	}
}

func TestDaysUntilAndSince(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysUntil(base, base))
	assert.Equal(t, 1, DaysUntil(base, base.Add(time.Minute)))
	assert.Equal(t, 1, DaysUntil(base, base.Add(Day)))
	assert.Equal(t, -1, DaysUntil(base, base.Add(-Day-time.Hour)))

	assert.Equal(t, 0, DaysSince(base, base.Add(23*time.Hour)))
	assert.Equal(t, 15, DaysSince(base, base.Add(15*Day)))
	assert.Equal(t, 15, DaysSince(base, base.Add(16*Day-time.Second)))
	assert.Equal(t, -1, DaysSince(base, base.Add(-time.Hour)))
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2025, 3, 9, 17, 45, 3, 9, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(in))
}
