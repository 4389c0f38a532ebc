package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

func TestBuildCompanyRankings_Totals(t *testing.T) {
	acc := make(map[int64]*companyAccum)
	accumulateCompanies(acc, []model.Position{
		{CompanyID: 1, CompanyName: "Acme SE", PositionSize: 1.2, Date: day(2024, time.March, 1)},
		{CompanyID: 1, CompanyName: "Acme SE", PositionSize: 0.8, Date: day(2024, time.March, 5)},
		{CompanyID: 2, CompanyName: "Nordic AB", PositionSize: 0.6, Date: day(2024, time.February, 1)},
	})

	rows := buildCompanyRankings(acc, map[int64]float64{1: 1.5})

	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].CompanyID)
	assert.InDelta(t, 2.0, rows[0].TotalShortExposure, 1e-9)
	assert.InDelta(t, 1.0, rows[0].AveragePositionSize, 1e-9)
	assert.Equal(t, 2, rows[0].PositionCount)
	assert.InDelta(t, 0.5, rows[0].WeekDelta, 1e-9)
	assert.Equal(t, "2024-03-05", rows[0].MostRecentPositionDate)

	// Absent from the prior snapshot: the whole total is new.
	assert.InDelta(t, 0.6, rows[1].WeekDelta, 1e-9)
}

func TestBuildCompanyRankings_TopNAndTies(t *testing.T) {
	acc := make(map[int64]*companyAccum)
	var positions []model.Position
	for i := 0; i < 15; i++ {
		positions = append(positions, model.Position{
			CompanyID:    int64(i + 1),
			CompanyName:  fmt.Sprintf("Company %02d", i),
			PositionSize: 1.0,
			Date:         day(2024, time.March, 1),
		})
	}
	accumulateCompanies(acc, positions)

	rows := buildCompanyRankings(acc, nil)

	require.Len(t, rows, 10)
	// All totals tie, so the ordering falls back to company id.
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row.CompanyID)
	}
}

func TestBuildDirectRankings_MatchesSnapshotShape(t *testing.T) {
	rows := buildDirectRankings([]store.CompanyAggregate{
		{CompanyID: 2, CompanyName: "Nordic AB", TotalExposure: 0.7, AverageSize: 0.7, PositionCount: 1, MostRecentPositionDate: day(2024, time.March, 2)},
		{CompanyID: 1, CompanyName: "Acme SE", TotalExposure: 2.4, AverageSize: 1.2, PositionCount: 2, MostRecentPositionDate: day(2024, time.March, 1)},
	}, map[int64]float64{1: 2.0})

	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].CompanyID)
	assert.InDelta(t, 0.4, rows[0].WeekDelta, 1e-9)
	assert.Equal(t, "2024-03-02", rows[1].MostRecentPositionDate)
}

func TestManagerRankings_OrderingAsymmetry(t *testing.T) {
	acc := make(map[string]*managerAccum)
	accumulateManagers(acc, []model.Position{
		// Wide: three small positions.
		{ManagerName: "Wide Fund", ManagerSlug: "wide-fund", PositionSize: 0.5},
		{ManagerName: "Wide Fund", ManagerSlug: "wide-fund", PositionSize: 0.5},
		{ManagerName: "Wide Fund", ManagerSlug: "wide-fund", PositionSize: 0.5},
		// Deep: one large position.
		{ManagerName: "Deep Fund", ManagerSlug: "deep-fund", PositionSize: 4.0},
	})

	byExposure := rankManagersByExposure(acc)
	require.Len(t, byExposure, 2)
	assert.Equal(t, "deep-fund", byExposure[0].Slug)

	byCount := rankManagersByCount(acc)
	require.Len(t, byCount, 2)
	assert.Equal(t, "wide-fund", byCount[0].Slug)
	assert.Equal(t, 3, byCount[0].ActivePositions)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, round2(1.234))
	assert.Equal(t, 1.24, round2(1.236))
	assert.Equal(t, -0.5, round2(-0.5001))
}
