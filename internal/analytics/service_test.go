package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

// fakeStore is an in-memory Store with canned responses and call
// recording for the strategy-selection assertions.
type fakeStore struct {
	countries   []model.Country
	companies   map[int64]*model.Company
	managers    map[int64]*model.Manager
	positions   map[int64][]model.Position // keyed by country id; 0 = all
	prior       []model.Position
	events      []model.TimelineEvent
	managerPos  []model.Position
	aggregates  []store.CompanyAggregate
	priorTotals map[int64]float64
	activeCount int
	latest      *time.Time
	summary     store.SummaryCounts
	topCountry  []store.CountryActivity
	trend       []store.TrendPoint

	cache map[string][]byte

	directCalls   int
	snapshotCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: map[int64]*model.Company{},
		managers:  map[int64]*model.Manager{},
		positions: map[int64][]model.Position{},
		cache:     map[string][]byte{},
	}
}

func (f *fakeStore) GetCountry(_ context.Context, id int64) (*model.Country, error) {
	for i := range f.countries {
		if f.countries[i].ID == id {
			return &f.countries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetCountryByCode(_ context.Context, code string) (*model.Country, error) {
	for i := range f.countries {
		if f.countries[i].Code == code {
			return &f.countries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListCountries(context.Context) ([]model.Country, error) {
	return f.countries, nil
}

func (f *fakeStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	if c, ok := f.companies[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetManager(_ context.Context, id int64) (*model.Manager, error) {
	if m, ok := f.managers[id]; ok {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetManagerBySlug(_ context.Context, slug string) (*model.Manager, error) {
	for _, m := range f.managers {
		if m.Slug == slug {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ActivePositions(_ context.Context, filter store.SnapshotFilter) ([]model.Position, error) {
	f.snapshotCalls++
	if filter.AsOf != nil {
		return f.prior, nil
	}
	if filter.CountryID != nil {
		return f.positions[*filter.CountryID], nil
	}
	return f.positions[0], nil
}

func (f *fakeStore) CountActivePositions(context.Context, int64) (int, error) {
	return f.activeCount, nil
}

func (f *fakeStore) LatestDisclosureDate(context.Context, int64) (*time.Time, error) {
	return f.latest, nil
}

func (f *fakeStore) CompanyTimelineEvents(context.Context, int64, time.Time) ([]model.TimelineEvent, error) {
	return f.events, nil
}

func (f *fakeStore) ManagerPositions(context.Context, int64) ([]model.Position, error) {
	return f.managerPos, nil
}

func (f *fakeStore) CompanyAggregatesDirect(context.Context, int64) ([]store.CompanyAggregate, error) {
	f.directCalls++
	return f.aggregates, nil
}

func (f *fakeStore) CompanyTotalsDirect(context.Context, int64, time.Time) (map[int64]float64, error) {
	return f.priorTotals, nil
}

func (f *fakeStore) GlobalSummary(context.Context, time.Time) (*store.SummaryCounts, error) {
	return &f.summary, nil
}

func (f *fakeStore) TopCountriesByActivity(context.Context, time.Time, int) ([]store.CountryActivity, error) {
	return f.topCountry, nil
}

func (f *fakeStore) PositionsTrend(context.Context, time.Time) ([]store.TrendPoint, error) {
	return f.trend, nil
}

func (f *fakeStore) GetCachedAnalytics(_ context.Context, key string) ([]byte, error) {
	return f.cache[key], nil
}

func (f *fakeStore) SetCachedAnalytics(_ context.Context, key string, payload []byte, _ time.Duration) error {
	f.cache[key] = payload
	return nil
}

func (f *fakeStore) DeleteExpiredAnalytics(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) ImportDisclosures(context.Context, []model.DisclosureRecord) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ExportDisclosures(context.Context, store.ExportFilter) ([]model.DisclosureRecord, error) {
	return nil, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Close() error                  { return nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCountryAnalytics_NoDataNotCached(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 3, Code: "FI", Name: "Finland"}}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CountryAnalytics(context.Background(), 3)

	require.NoError(t, err)
	assert.NotEmpty(t, out.Message)
	assert.Empty(t, out.MostShortedCompanies)
	assert.Empty(t, fs.cache, "empty payloads must not be cached")
}

func TestCountryAnalytics_InactiveDisclosuresStillRender(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 4, Code: "PT", Name: "Portugal"}}
	latest := day(2024, time.February, 9)
	fs.latest = &latest
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CountryAnalytics(context.Background(), 4)

	// Disclosures exist but none are flagged active: a normal payload
	// with empty rankings, not the no-data message.
	require.NoError(t, err)
	assert.Empty(t, out.Message)
	assert.Equal(t, "2024-02-09", out.LatestDate)
	assert.Zero(t, out.TotalActivePositions)
	assert.NotNil(t, out.MostShortedCompanies)
	assert.Empty(t, out.MostShortedCompanies)
	assert.Contains(t, fs.cache, "country_analytics:4")
}

func TestCountryAnalytics_SnapshotStrategy(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 1, Code: "DE", Name: "Germany"}}
	fs.activeCount = 2
	latest := day(2024, time.May, 31)
	fs.latest = &latest
	fs.positions[1] = []model.Position{
		{CompanyID: 10, CompanyName: "Acme SE", ManagerName: "Alpha", ManagerSlug: "alpha", PositionSize: 1.2, Date: day(2024, time.May, 30)},
		{CompanyID: 10, CompanyName: "Acme SE", ManagerName: "Beta", ManagerSlug: "beta", PositionSize: 0.8, Date: day(2024, time.May, 31)},
	}
	fs.prior = []model.Position{
		{CompanyID: 10, CompanyName: "Acme SE", PositionSize: 1.5},
	}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CountryAnalytics(context.Background(), 1)

	require.NoError(t, err)
	assert.Zero(t, fs.directCalls)
	require.Len(t, out.MostShortedCompanies, 1)
	assert.InDelta(t, 2.0, out.MostShortedCompanies[0].TotalShortExposure, 1e-9)
	assert.InDelta(t, 0.5, out.MostShortedCompanies[0].WeekDelta, 1e-9)
	require.Len(t, out.TopManagers, 2)
	assert.Equal(t, "alpha", out.TopManagers[0].Slug)
	assert.Equal(t, "2024-05-31", out.LatestDate)
	assert.Contains(t, fs.cache, "country_analytics:1")
}

func TestCountryAnalytics_DirectQueryStrategy(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 9, Code: "IE", Name: "Ireland"}}
	fs.activeCount = 1
	latest := day(2024, time.May, 20)
	fs.latest = &latest
	fs.positions[9] = []model.Position{
		{CompanyID: 20, CompanyName: "Dublin PLC", ManagerName: "Alpha", ManagerSlug: "alpha", PositionSize: 0.9},
	}
	fs.aggregates = []store.CompanyAggregate{
		{CompanyID: 20, CompanyName: "Dublin PLC", TotalExposure: 0.9, AverageSize: 0.9, PositionCount: 1, MostRecentPositionDate: day(2024, time.May, 20)},
	}
	fs.priorTotals = map[int64]float64{20: 0.4}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CountryAnalytics(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, 1, fs.directCalls)
	require.Len(t, out.MostShortedCompanies, 1)
	assert.InDelta(t, 0.5, out.MostShortedCompanies[0].WeekDelta, 1e-9)
}

func TestCountryAnalytics_CacheHit(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 1, Code: "DE", Name: "Germany"}}
	cached := model.CountryAnalytics{TotalActivePositions: 42, MostShortedCompanies: []model.CompanyRanking{}, TopManagers: []model.ManagerRanking{}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	fs.cache["country_analytics:1"] = payload
	svc := NewService(fs, &weekdayCalendar{})

	out, err := svc.CountryAnalytics(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 42, out.TotalActivePositions)
	assert.Zero(t, fs.snapshotCalls, "cache hits must not touch disclosure tables")
}

func TestCountryAnalytics_CorruptCacheRecomputes(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{{ID: 1, Code: "DE", Name: "Germany"}}
	fs.cache["country_analytics:1"] = []byte("{not json")
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CountryAnalytics(context.Background(), 1)

	require.NoError(t, err)
	assert.NotEmpty(t, out.Message)
}

func TestCompanyTimeline_NormalizesTimeframe(t *testing.T) {
	fs := newFakeStore()
	fs.companies[7] = &model.Company{ID: 7, Name: "Acme SE", Country: model.Country{Code: "DE"}}
	fs.events = []model.TimelineEvent{
		{ManagerName: "Alpha", Date: day(2024, time.May, 1), PositionSize: 1.0},
	}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.CompanyTimeline(context.Background(), 7, "bogus")

	require.NoError(t, err)
	assert.Equal(t, "3m", out.Timeframe)
	assert.NotEmpty(t, out.PositionsOverTime)
	assert.Contains(t, fs.cache, "company_timeline:7:3m")
}

func TestManagerLedger_ResolvesSlugAndID(t *testing.T) {
	fs := newFakeStore()
	fs.managers[5] = &model.Manager{ID: 5, Name: "Alpha Capital", Slug: "alpha-capital"}
	fs.managerPos = []model.Position{
		{CompanyID: 1, CompanyName: "Acme SE", CountryCode: "DE", CountryName: "Germany", Date: day(2024, time.May, 1), PositionSize: 1.1},
	}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	bySlug, err := svc.ManagerLedger(context.Background(), "alpha-capital")
	require.NoError(t, err)
	byID, err := svc.ManagerLedger(context.Background(), "5")
	require.NoError(t, err)

	assert.Equal(t, bySlug.Manager.ID, byID.Manager.ID)
	require.Len(t, bySlug.CurrentPositions, 1)
	assert.Equal(t, []string{"Germany"}, bySlug.Countries)
}

func TestManagerLedger_UnknownManager(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, &weekdayCalendar{})

	_, err := svc.ManagerLedger(context.Background(), "nobody")

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGlobalRankings_MergesCountries(t *testing.T) {
	fs := newFakeStore()
	fs.countries = []model.Country{
		{ID: 1, Code: "DE", Name: "Germany"},
		{ID: 2, Code: "SE", Name: "Sweden"},
	}
	fs.positions[1] = []model.Position{
		{CompanyID: 10, CompanyName: "Acme SE", ManagerName: "Wide", ManagerSlug: "wide", PositionSize: 0.6, Date: day(2024, time.May, 1)},
		{CompanyID: 10, CompanyName: "Acme SE", ManagerName: "Deep", ManagerSlug: "deep", PositionSize: 3.0, Date: day(2024, time.May, 2)},
	}
	fs.positions[2] = []model.Position{
		{CompanyID: 11, CompanyName: "Nordic AB", ManagerName: "Wide", ManagerSlug: "wide", PositionSize: 0.7, Date: day(2024, time.May, 3)},
	}
	latest := day(2024, time.May, 3)
	fs.summary = store.SummaryCounts{ActivePositions: 3, Countries: 2, Companies: 2, Managers: 2, LatestDate: &latest}
	fs.topCountry = []store.CountryActivity{{Name: "Germany", ActivePositions: 2, TotalExposure: 3.6}}
	fs.trend = []store.TrendPoint{{Date: day(2024, time.May, 3), ActivePositions: 3, TotalExposure: 4.3}}
	svc := NewService(fs, &weekdayCalendar{}, WithClock(fixedClock(day(2024, time.June, 3))))

	out, err := svc.GlobalRankings(context.Background(), "1m")

	require.NoError(t, err)
	require.Len(t, out.TopCompanies, 2)
	assert.Equal(t, "Acme SE", out.TopCompanies[0].CompanyName)
	// Global manager ranking orders by position count, not exposure.
	require.Len(t, out.TopManagers, 2)
	assert.Equal(t, "wide", out.TopManagers[0].Slug)
	assert.Equal(t, 2, out.TopManagers[0].ActivePositions)
	assert.Equal(t, 3, out.Summary.TotalActivePositions)
	assert.Equal(t, "2024-05-03", out.Summary.LatestDataDate)
	require.Len(t, out.PositionsTrend, 1)
	assert.Contains(t, fs.cache, "global_rankings:1m")
}
