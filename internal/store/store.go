// Package store provides read access to the disclosure event log and
// reference entities, plus read/write access to the analytics cache
// table. Two backends implement Store: PostgresStore for production and
// SQLiteStore for local work.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shorttrack/shorttrack/internal/model"
)

// ErrNotFound reports a missing reference entity (country, company, or
// manager). Callers match it with errors.Is.
var ErrNotFound = eris.New("not found")

// SnapshotFilter bounds the active-position snapshot. Nil fields mean
// "all countries" and "now" respectively.
type SnapshotFilter struct {
	CountryID *int64
	AsOf      *time.Time
}

// CompanyAggregate is a SQL-side per-company rollup of active
// disclosures, used by the direct-query ranking strategy.
type CompanyAggregate struct {
	CompanyID              int64
	CompanyName            string
	TotalExposure          float64
	AverageSize            float64
	PositionCount          int
	MostRecentPositionDate time.Time
}

// SummaryCounts holds the global dashboard headline numbers.
type SummaryCounts struct {
	ActivePositions int
	Countries       int
	Companies       int
	Managers        int
	LatestDate      *time.Time
}

// CountryActivity is a per-country rollup of active disclosure counts
// and total exposure.
type CountryActivity struct {
	Name            string
	Flag            string
	ActivePositions int
	TotalExposure   float64
}

// TrendPoint is one calendar day of aggregate active disclosure volume.
type TrendPoint struct {
	Date            time.Time
	ActivePositions int
	TotalExposure   float64
}

// ExportFilter narrows a disclosure export. Zero values mean no filter.
type ExportFilter struct {
	CountryCode string
	Since       *time.Time
}

// Store defines the persistence interface consumed by the analytics
// engine and the CLI commands.
type Store interface {
	// Reference entities (read-only; managed elsewhere).
	GetCountry(ctx context.Context, id int64) (*model.Country, error)
	GetCountryByCode(ctx context.Context, code string) (*model.Country, error)
	ListCountries(ctx context.Context) ([]model.Country, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	GetManager(ctx context.Context, id int64) (*model.Manager, error)
	GetManagerBySlug(ctx context.Context, slug string) (*model.Manager, error)

	// Disclosure reads.
	ActivePositions(ctx context.Context, f SnapshotFilter) ([]model.Position, error)
	CountActivePositions(ctx context.Context, countryID int64) (int, error)
	LatestDisclosureDate(ctx context.Context, countryID int64) (*time.Time, error)
	CompanyTimelineEvents(ctx context.Context, companyID int64, since time.Time) ([]model.TimelineEvent, error)
	ManagerPositions(ctx context.Context, managerID int64) ([]model.Position, error)
	CompanyAggregatesDirect(ctx context.Context, countryID int64) ([]CompanyAggregate, error)
	CompanyTotalsDirect(ctx context.Context, countryID int64, asOf time.Time) (map[int64]float64, error)

	// Global dashboard reads.
	GlobalSummary(ctx context.Context, since time.Time) (*SummaryCounts, error)
	TopCountriesByActivity(ctx context.Context, since time.Time, limit int) ([]CountryActivity, error)
	PositionsTrend(ctx context.Context, since time.Time) ([]TrendPoint, error)

	// Analytics cache.
	GetCachedAnalytics(ctx context.Context, key string) ([]byte, error)
	SetCachedAnalytics(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	DeleteExpiredAnalytics(ctx context.Context) (int, error)

	// Backup restore / export.
	ImportDisclosures(ctx context.Context, records []model.DisclosureRecord) (int64, error)
	ExportDisclosures(ctx context.Context, f ExportFilter) ([]model.DisclosureRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// parseRecordDate accepts the ISO calendar form used by backups and
// falls back to RFC 3339 timestamps.
func parseRecordDate(s string) (time.Time, error) {
	if t, err := time.Parse(model.ISODate, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "store: parse date %q", s)
	}
	return t, nil
}
