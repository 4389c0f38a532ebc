// Package calendar maps regulator jurisdictions to trading-day
// calendars. It is an injected capability so the timeline logic can be
// tested with deterministic calendars.
package calendar

import (
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
)

// Provider answers whether a calendar date is a trading day in a given
// jurisdiction. Implementations must not fail: a jurisdiction without a
// known holiday set degrades to plain weekday logic.
type Provider interface {
	IsTradingDay(countryCode string, day time.Time) bool
}

// countryHolidays maps regulator country codes to public holiday sets.
// Codes missing here fall back to weekdays-only.
var countryHolidays = map[string][]*cal.Holiday{
	"AT": at.Holidays,
	"BE": be.Holidays,
	"DE": de.Holidays,
	"DK": dk.Holidays,
	"ES": es.Holidays,
	"FI": fi.Holidays,
	"FR": fr.Holidays,
	"GB": gb.Holidays,
	"IE": ie.Holidays,
	"IT": it.Holidays,
	"NL": nl.Holidays,
	"NO": no.Holidays,
	"PT": pt.Holidays,
	"SE": se.Holidays,
}

// Business is the production Provider, backed by rickar/cal business
// calendars built lazily per country.
type Business struct {
	mu   sync.Mutex
	cals map[string]*cal.BusinessCalendar
}

// NewBusiness creates an empty calendar provider.
func NewBusiness() *Business {
	return &Business{cals: make(map[string]*cal.BusinessCalendar)}
}

// IsTradingDay reports whether day is a business day (Mon-Fri and not a
// public holiday) for the country. Unknown country codes fail open to
// the weekday check.
func (b *Business) IsTradingDay(countryCode string, day time.Time) bool {
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	holidays, ok := countryHolidays[countryCode]
	if !ok {
		return true
	}

	b.mu.Lock()
	c, ok := b.cals[countryCode]
	if !ok {
		c = cal.NewBusinessCalendar()
		c.AddHoliday(holidays...)
		b.cals[countryCode] = c
	}
	b.mu.Unlock()

	return c.IsWorkday(day)
}
