package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsTradingDay_Weekend(t *testing.T) {
	b := NewBusiness()

	assert.False(t, b.IsTradingDay("FR", date(2024, time.March, 2)))  // Saturday
	assert.False(t, b.IsTradingDay("FR", date(2024, time.March, 3)))  // Sunday
	assert.True(t, b.IsTradingDay("FR", date(2024, time.March, 4)))   // Monday
}

func TestIsTradingDay_Holiday(t *testing.T) {
	b := NewBusiness()

	// Bastille Day 2025 falls on a Monday.
	assert.False(t, b.IsTradingDay("FR", date(2025, time.July, 14)))
	// New Year's Day 2024 is a Monday and a holiday everywhere we track.
	assert.False(t, b.IsTradingDay("DE", date(2024, time.January, 1)))
	assert.False(t, b.IsTradingDay("IE", date(2024, time.January, 1)))
}

func TestIsTradingDay_UnknownCountryFailsOpen(t *testing.T) {
	b := NewBusiness()

	// Unknown jurisdictions degrade to weekday-only logic, never to an
	// empty calendar.
	assert.True(t, b.IsTradingDay("XX", date(2025, time.July, 14)))
	assert.False(t, b.IsTradingDay("XX", date(2025, time.July, 12))) // Saturday
}

func TestIsTradingDay_CalendarReuse(t *testing.T) {
	b := NewBusiness()

	assert.True(t, b.IsTradingDay("SE", date(2024, time.March, 4)))
	assert.True(t, b.IsTradingDay("SE", date(2024, time.March, 5)))
	assert.Len(t, b.cals, 1)
}
