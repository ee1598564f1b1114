package biztime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDaysKeepsWallClockAcrossDST(t *testing.T) {
	require.NoError(t, Init("Europe/Paris"))

	// 2026-03-29 is the spring-forward date in Paris.
	start := time.Date(2026, 3, 28, 9, 0, 0, 0, Location()).UTC()
	got := AddDays(start, 2).In(Location())

	assert.Equal(t, 30, got.Day())
	assert.Equal(t, 9, got.Hour())
}

func TestDaysBetween(t *testing.T) {
	require.NoError(t, Init("UTC"))
	a := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestMonthsBetween(t *testing.T) {
	require.NoError(t, Init("UTC"))
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", date(2025, 1, 15), date(2025, 1, 15), 0},
		{"one day short of a month", date(2025, 1, 15), date(2025, 2, 14), 0},
		{"exact month", date(2025, 1, 15), date(2025, 2, 15), 1},
		{"across years", date(2024, 11, 1), date(2026, 1, 1), 14},
		{"reversed", date(2026, 1, 1), date(2025, 1, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsBetween(tt.a, tt.b))
		})
	}
}

func TestManualClock(t *testing.T) {
	require.NoError(t, Init("UTC"))
	c := NewManualClock(date(2026, 5, 1))
	c.AdvanceDays(10)
	assert.Equal(t, date(2026, 5, 11), c.Now())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
