package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

// freshnessStore stubs the two store reads the collector uses.
type freshnessStore struct {
	store.Store

	countries []model.Country
	counts    map[int64]int
	latest    map[int64]*time.Time
}

func (f *freshnessStore) ListCountries(context.Context) ([]model.Country, error) {
	return f.countries, nil
}

func (f *freshnessStore) CountActivePositions(_ context.Context, countryID int64) (int, error) {
	return f.counts[countryID], nil
}

func (f *freshnessStore) LatestDisclosureDate(_ context.Context, countryID int64) (*time.Time, error) {
	return f.latest[countryID], nil
}

// weekdayCal is trading-day logic without holiday sets.
type weekdayCal struct{}

func (weekdayCal) IsTradingDay(_ string, day time.Time) bool {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCollector_StaleDaysCountsTradingDays(t *testing.T) {
	fri := date(2024, time.March, 1)
	fs := &freshnessStore{
		countries: []model.Country{{ID: 1, Code: "DE", Name: "Germany"}},
		counts:    map[int64]int{1: 7},
		latest:    map[int64]*time.Time{1: &fri},
	}
	c := NewCollector(fs, weekdayCal{})
	// Friday -> next Thursday: Mon, Tue, Wed, Thu = 4 trading days.
	c.now = func() time.Time { return date(2024, time.March, 7) }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Countries, 1)
	assert.Equal(t, 4, snap.Countries[0].StaleDays)
	assert.Equal(t, 7, snap.Countries[0].ActivePositions)
}

func TestCollector_NoDataHasZeroStaleness(t *testing.T) {
	fs := &freshnessStore{
		countries: []model.Country{{ID: 2, Code: "PT", Name: "Portugal"}},
		counts:    map[int64]int{},
		latest:    map[int64]*time.Time{},
	}
	c := NewCollector(fs, weekdayCal{})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Countries, 1)
	assert.Nil(t, snap.Countries[0].LatestDate)
	assert.Zero(t, snap.Countries[0].StaleDays)
}

func TestAlerter_Evaluate(t *testing.T) {
	latest := date(2024, time.February, 1)
	snap := &FreshnessSnapshot{
		CollectedAt: date(2024, time.March, 1),
		Countries: []CountryFreshness{
			{CountryCode: "DE", CountryName: "Germany", LatestDate: &latest, StaleDays: 1},
			{CountryCode: "FR", CountryName: "France", LatestDate: &latest, StaleDays: 9},
			{CountryCode: "PT", CountryName: "Portugal"},
		},
	}

	alerts := NewAlerter("", 3).Evaluate(snap)

	require.Len(t, alerts, 2)
	assert.Equal(t, AlertStaleFeed, alerts[0].Type)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "France")
	assert.Equal(t, AlertEmptyFeed, alerts[1].Type)
}

func TestAlerter_SendPostsWebhook(t *testing.T) {
	var got struct {
		Alerts []Alert `json:"alerts"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL, 3)
	err := a.Send(context.Background(), []Alert{{Type: AlertStaleFeed, Severity: "critical", Message: "x"}})

	require.NoError(t, err)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, AlertStaleFeed, got.Alerts[0].Type)
}

func TestAlerter_SendWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewAlerter(srv.URL, 3).Send(context.Background(), []Alert{{Type: AlertEmptyFeed}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAlerter_NoWebhookNoAlertsIsNoop(t *testing.T) {
	assert.NoError(t, NewAlerter("", 3).Send(context.Background(), nil))
}
