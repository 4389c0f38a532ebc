package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shorttrack/shorttrack/internal/calendar"
	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

// DefaultCacheTTL is how long computed analytics payloads stay valid.
const DefaultCacheTTL = 24 * time.Hour

// Service computes dashboard payloads on top of a Store, memoizing each
// one in the analytics cache table.
type Service struct {
	store       store.Store
	cal         calendar.Provider
	now         func() time.Time
	cacheTTL    time.Duration
	directQuery map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCacheTTL overrides the cache entry lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

// WithDirectQueryCountries selects which country codes use SQL-side
// aggregation for company rankings instead of snapshot aggregation.
func WithDirectQueryCountries(codes []string) Option {
	return func(s *Service) {
		s.directQuery = make(map[string]bool, len(codes))
		for _, c := range codes {
			s.directQuery[c] = true
		}
	}
}

// NewService wires a Service over st and cal.
func NewService(st store.Store, cal calendar.Provider, opts ...Option) *Service {
	s := &Service{
		store:       st,
		cal:         cal,
		now:         time.Now,
		cacheTTL:    DefaultCacheTTL,
		directQuery: map[string]bool{"IE": true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CountryAnalytics computes the dashboard for one country: top shorted
// companies with week deltas, top managers by exposure, and headline
// counts. Countries that have never had a disclosure return a message
// payload, which is never cached so data appears as soon as it lands;
// countries whose disclosures are all inactive get a normal payload
// with empty rankings.
func (s *Service) CountryAnalytics(ctx context.Context, countryID int64) (*model.CountryAnalytics, error) {
	country, err := s.store.GetCountry(ctx, countryID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("country_analytics:%d", countryID)
	var out model.CountryAnalytics
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	latest, err := s.store.LatestDisclosureDate(ctx, countryID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &model.CountryAnalytics{
			Country:              *country,
			MostShortedCompanies: []model.CompanyRanking{},
			TopManagers:          []model.ManagerRanking{},
			Message:              "No short position data disclosed for this country yet.",
		}, nil
	}

	count, err := s.store.CountActivePositions(ctx, countryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	weekAgo := now.AddDate(0, 0, -7)

	positions, err := s.store.ActivePositions(ctx, store.SnapshotFilter{CountryID: &countryID})
	if err != nil {
		return nil, err
	}

	var companies []model.CompanyRanking
	if s.directQuery[country.Code] {
		aggs, err := s.store.CompanyAggregatesDirect(ctx, countryID)
		if err != nil {
			return nil, err
		}
		prior, err := s.store.CompanyTotalsDirect(ctx, countryID, weekAgo)
		if err != nil {
			return nil, err
		}
		companies = buildDirectRankings(aggs, prior)
	} else {
		acc := make(map[int64]*companyAccum)
		accumulateCompanies(acc, positions)

		priorSnapshot, err := s.store.ActivePositions(ctx, store.SnapshotFilter{CountryID: &countryID, AsOf: &weekAgo})
		if err != nil {
			return nil, err
		}
		companies = buildCompanyRankings(acc, companyTotals(priorSnapshot))
	}

	managerAcc := make(map[string]*managerAccum)
	accumulateManagers(managerAcc, positions)

	out = model.CountryAnalytics{
		Country:              *country,
		LatestDate:           model.FormatDate(*latest),
		MostShortedCompanies: companies,
		TopManagers:          rankManagersByExposure(managerAcc),
		TotalActivePositions: count,
	}
	s.writeCache(ctx, key, &out)
	return &out, nil
}

// CompanyTimeline reconstructs a company's exposure series over the
// requested timeframe. History reads never reach past the data
// integrity barrier, regardless of timeframe.
func (s *Service) CompanyTimeline(ctx context.Context, companyID int64, timeframe string) (*model.CompanyTimeline, error) {
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	tf := NormalizeTimeframe(timeframe)

	key := fmt.Sprintf("company_timeline:%d:%s", companyID, tf)
	var out model.CompanyTimeline
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	now := s.now()
	barrier := now.AddDate(0, 0, -integrityBarrierDays)
	events, err := s.store.CompanyTimelineEvents(ctx, companyID, barrier)
	if err != nil {
		return nil, err
	}

	out = model.CompanyTimeline{
		Company:           *company,
		Timeframe:         tf,
		PositionsOverTime: ReconstructTimeline(events, company.Country.Code, barrier, now, LookbackDays(tf), s.cal),
	}
	s.writeCache(ctx, key, &out)
	return &out, nil
}

// ManagerLedger builds the current/historical position ledger for a
// manager addressed by numeric id or slug.
func (s *Service) ManagerLedger(ctx context.Context, idOrSlug string) (*model.ManagerLedger, error) {
	manager, err := s.resolveManager(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("manager_ledger:%d", manager.ID)
	var out model.ManagerLedger
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	positions, err := s.store.ManagerPositions(ctx, manager.ID)
	if err != nil {
		return nil, err
	}
	current, historical, countries := BuildLedger(positions)

	out = model.ManagerLedger{
		Manager:             *manager,
		CurrentPositions:    current,
		HistoricalPositions: historical,
		Countries:           countries,
	}
	s.writeCache(ctx, key, &out)
	return &out, nil
}

func (s *Service) resolveManager(ctx context.Context, idOrSlug string) (*model.Manager, error) {
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		return s.store.GetManager(ctx, id)
	}
	return s.store.GetManagerBySlug(ctx, idOrSlug)
}

// GlobalRankings aggregates every country's active snapshot into the
// cross-border dashboard. Per-country snapshots load concurrently and
// merge in country order, so output is deterministic.
func (s *Service) GlobalRankings(ctx context.Context, timeframe string) (*model.GlobalRankings, error) {
	tf := NormalizeTimeframe(timeframe)

	key := fmt.Sprintf("global_rankings:%s", tf)
	var out model.GlobalRankings
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	now := s.now()
	since := now.AddDate(0, 0, -LookbackDays(tf))
	weekAgo := now.AddDate(0, 0, -7)

	countries, err := s.store.ListCountries(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([][]model.Position, len(countries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range countries {
		i := i
		id := countries[i].ID
		g.Go(func() error {
			positions, err := s.store.ActivePositions(gctx, store.SnapshotFilter{CountryID: &id})
			if err != nil {
				return eris.Wrapf(err, "analytics: snapshot %s", countries[i].Code)
			}
			snapshots[i] = positions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	companyAcc := make(map[int64]*companyAccum)
	managerAcc := make(map[string]*managerAccum)
	for _, snapshot := range snapshots {
		accumulateCompanies(companyAcc, snapshot)
		accumulateManagers(managerAcc, snapshot)
	}

	priorSnapshot, err := s.store.ActivePositions(ctx, store.SnapshotFilter{AsOf: &weekAgo})
	if err != nil {
		return nil, err
	}

	summary, err := s.store.GlobalSummary(ctx, since)
	if err != nil {
		return nil, err
	}
	topCountries, err := s.store.TopCountriesByActivity(ctx, since, topN)
	if err != nil {
		return nil, err
	}
	trend, err := s.store.PositionsTrend(ctx, since)
	if err != nil {
		return nil, err
	}

	out = model.GlobalRankings{
		Timeframe: tf,
		Summary: model.GlobalSummary{
			TotalActivePositions: summary.ActivePositions,
			TotalCountries:       summary.Countries,
			TotalCompanies:       summary.Companies,
			TotalManagers:        summary.Managers,
		},
		TopCompanies:   buildCompanyRankings(companyAcc, companyTotals(priorSnapshot)),
		TopManagers:    rankManagersByCount(managerAcc),
		TopCountries:   make([]model.CountryActivity, 0, len(topCountries)),
		PositionsTrend: make([]model.TrendPoint, 0, len(trend)),
	}
	if summary.LatestDate != nil {
		out.Summary.LatestDataDate = model.FormatDate(*summary.LatestDate)
	}
	for _, c := range topCountries {
		out.TopCountries = append(out.TopCountries, model.CountryActivity{
			CountryName:     c.Name,
			CountryFlag:     c.Flag,
			ActivePositions: c.ActivePositions,
			TotalExposure:   round2(c.TotalExposure),
		})
	}
	for _, p := range trend {
		out.PositionsTrend = append(out.PositionsTrend, model.TrendPoint{
			Date:            model.FormatDate(p.Date),
			ActivePositions: p.ActivePositions,
			TotalExposure:   round2(p.TotalExposure),
		})
	}
	s.writeCache(ctx, key, &out)
	return &out, nil
}

// cached loads key into v. A missing entry, an expired entry, or a
// payload that no longer unmarshals all count as misses.
func (s *Service) cached(ctx context.Context, key string, v any) bool {
	payload, err := s.store.GetCachedAnalytics(ctx, key)
	if err != nil {
		zap.L().Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if payload == nil {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		zap.L().Warn("analytics cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// writeCache stores v under key. Cache write failures are logged and
// swallowed: the computed payload is already in hand.
func (s *Service) writeCache(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("analytics cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.SetCachedAnalytics(ctx, key, payload, s.cacheTTL); err != nil {
		zap.L().Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
