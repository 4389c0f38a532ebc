package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

// companyAccum accumulates one company's active disclosures during
// snapshot aggregation. Partial accumulators from concurrent per-country
// snapshots merge deterministically because every field is additive
// except MostRecent, which takes the max.
type companyAccum struct {
	ID         int64
	Name       string
	Total      float64
	Count      int
	MostRecent time.Time
}

// accumulateCompanies folds an active-position snapshot into acc, keyed
// by company id. acc may already hold partials from other snapshots.
func accumulateCompanies(acc map[int64]*companyAccum, positions []model.Position) {
	for _, p := range positions {
		a, ok := acc[p.CompanyID]
		if !ok {
			a = &companyAccum{ID: p.CompanyID, Name: p.CompanyName}
			acc[p.CompanyID] = a
		}
		a.Total += p.PositionSize
		a.Count++
		if p.Date.After(a.MostRecent) {
			a.MostRecent = p.Date
		}
	}
}

// companyTotals reduces a snapshot to per-company exposure sums, used
// for the week-ago comparison baseline.
func companyTotals(positions []model.Position) map[int64]float64 {
	totals := make(map[int64]float64)
	for _, p := range positions {
		totals[p.CompanyID] += p.PositionSize
	}
	return totals
}

// buildCompanyRankings turns accumulated company exposure into the
// top-N ranking. weekAgo supplies each company's total exposure seven
// days earlier; companies absent from it get a delta equal to their
// whole current total.
func buildCompanyRankings(acc map[int64]*companyAccum, weekAgo map[int64]float64) []model.CompanyRanking {
	rows := make([]model.CompanyRanking, 0, len(acc))
	for _, a := range acc {
		count := a.Count
		if count < 1 {
			count = 1
		}
		rows = append(rows, model.CompanyRanking{
			CompanyID:              a.ID,
			CompanyName:            a.Name,
			TotalShortExposure:     round2(a.Total),
			AveragePositionSize:    round2(a.Total / float64(count)),
			PositionCount:          a.Count,
			WeekDelta:              round2(a.Total - weekAgo[a.ID]),
			MostRecentPositionDate: model.FormatDate(a.MostRecent),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalShortExposure != rows[j].TotalShortExposure {
			return rows[i].TotalShortExposure > rows[j].TotalShortExposure
		}
		return rows[i].CompanyID < rows[j].CompanyID
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

// buildDirectRankings converts SQL-side aggregates into ranking rows.
// Ordering and the top-N cut match buildCompanyRankings so the two
// strategies are interchangeable to callers.
func buildDirectRankings(aggs []store.CompanyAggregate, weekAgo map[int64]float64) []model.CompanyRanking {
	rows := make([]model.CompanyRanking, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, model.CompanyRanking{
			CompanyID:              a.CompanyID,
			CompanyName:            a.CompanyName,
			TotalShortExposure:     round2(a.TotalExposure),
			AveragePositionSize:    round2(a.AverageSize),
			PositionCount:          a.PositionCount,
			WeekDelta:              round2(a.TotalExposure - weekAgo[a.CompanyID]),
			MostRecentPositionDate: model.FormatDate(a.MostRecentPositionDate),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalShortExposure != rows[j].TotalShortExposure {
			return rows[i].TotalShortExposure > rows[j].TotalShortExposure
		}
		return rows[i].CompanyID < rows[j].CompanyID
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

// managerAccum accumulates one manager's active disclosures.
type managerAccum struct {
	Name  string
	Slug  string
	Count int
	Total float64
}

// accumulateManagers folds an active-position snapshot into acc, keyed
// by manager slug.
func accumulateManagers(acc map[string]*managerAccum, positions []model.Position) {
	for _, p := range positions {
		a, ok := acc[p.ManagerSlug]
		if !ok {
			a = &managerAccum{Name: p.ManagerName, Slug: p.ManagerSlug}
			acc[p.ManagerSlug] = a
		}
		a.Count++
		a.Total += p.PositionSize
	}
}

// rankManagersByExposure orders managers by total exposure descending,
// the country-dashboard ordering.
func rankManagersByExposure(acc map[string]*managerAccum) []model.ManagerRanking {
	rows := managerRows(acc)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalExposure != rows[j].TotalExposure {
			return rows[i].TotalExposure > rows[j].TotalExposure
		}
		return rows[i].Slug < rows[j].Slug
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

// rankManagersByCount orders managers by active position count
// descending, the global-dashboard ordering.
func rankManagersByCount(acc map[string]*managerAccum) []model.ManagerRanking {
	rows := managerRows(acc)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ActivePositions != rows[j].ActivePositions {
			return rows[i].ActivePositions > rows[j].ActivePositions
		}
		return rows[i].Slug < rows[j].Slug
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

func managerRows(acc map[string]*managerAccum) []model.ManagerRanking {
	rows := make([]model.ManagerRanking, 0, len(acc))
	for _, a := range acc {
		rows = append(rows, model.ManagerRanking{
			Name:            a.Name,
			Slug:            a.Slug,
			ActivePositions: a.Count,
			TotalExposure:   round2(a.Total),
		})
	}
	return rows
}

// round2 rounds to two decimal places, the precision disclosures are
// published at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
