// Package monitoring watches disclosure feed freshness. Regulators
// publish on business days; a country whose latest disclosure trails
// today by too many trading days usually means ingestion has silently
// stopped for that jurisdiction.
package monitoring

import (
	"context"
	"time"

	"github.com/shorttrack/shorttrack/internal/calendar"
	"github.com/shorttrack/shorttrack/internal/store"
)

// CountryFreshness is one country's feed state.
type CountryFreshness struct {
	CountryCode     string     `json:"country_code"`
	CountryName     string     `json:"country_name"`
	ActivePositions int        `json:"active_positions"`
	LatestDate      *time.Time `json:"latest_date,omitempty"`
	StaleDays       int        `json:"stale_days"`
}

// FreshnessSnapshot holds a point-in-time view of feed health across
// all tracked countries.
type FreshnessSnapshot struct {
	Countries   []CountryFreshness `json:"countries"`
	CollectedAt time.Time          `json:"collected_at"`
}

// Collector builds freshness snapshots from the store.
type Collector struct {
	store store.Store
	cal   calendar.Provider
	now   func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(st store.Store, cal calendar.Provider) *Collector {
	return &Collector{store: st, cal: cal, now: time.Now}
}

// Collect reads per-country feed state. StaleDays counts the trading
// days between a country's latest disclosure and today; countries with
// no data at all report zero staleness, they are a seeding problem, not
// an ingestion one.
func (c *Collector) Collect(ctx context.Context) (*FreshnessSnapshot, error) {
	countries, err := c.store.ListCountries(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	snap := &FreshnessSnapshot{CollectedAt: now}
	for _, country := range countries {
		cf := CountryFreshness{CountryCode: country.Code, CountryName: country.Name}

		cf.ActivePositions, err = c.store.CountActivePositions(ctx, country.ID)
		if err != nil {
			return nil, err
		}
		latest, err := c.store.LatestDisclosureDate(ctx, country.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			cf.LatestDate = latest
			cf.StaleDays = c.tradingDaysBetween(country.Code, *latest, now)
		}
		snap.Countries = append(snap.Countries, cf)
	}
	return snap, nil
}

// tradingDaysBetween counts trading days strictly after from, up to and
// including to's date.
func (c *Collector) tradingDaysBetween(countryCode string, from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	day := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)

	days := 0
	for day = day.AddDate(0, 0, 1); !day.After(end); day = day.AddDate(0, 0, 1) {
		if c.cal.IsTradingDay(countryCode, day) {
			days++
		}
	}
	return days
}
