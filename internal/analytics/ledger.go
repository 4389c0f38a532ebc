package analytics

import (
	"sort"

	"github.com/shorttrack/shorttrack/internal/model"
)

// BuildLedger splits a manager's full disclosure history into current
// holdings and closed ones. Positions are grouped per company and
// replayed newest-first: the latest record decides whether a holding is
// current, and each older record's exit date is the date of the record
// that superseded it. Records that never reached ActiveThreshold were
// never positions at all and appear in neither list.
//
// The input must be ordered the way the store returns it: grouped by
// company, newest disclosure first within each group.
func BuildLedger(positions []model.Position) (current, historical []model.LedgerEntry, countries []string) {
	type group struct {
		companyID int64
		rows      []model.Position
	}
	var groups []group
	index := make(map[int64]int)
	for _, p := range positions {
		i, ok := index[p.CompanyID]
		if !ok {
			i = len(groups)
			index[p.CompanyID] = i
			groups = append(groups, group{companyID: p.CompanyID})
		}
		groups[i].rows = append(groups[i].rows, p)
	}

	seen := make(map[string]bool)

	current = []model.LedgerEntry{}
	historical = []model.LedgerEntry{}
	for _, g := range groups {
		rows := g.rows
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })

		for i, p := range rows {
			if p.PositionSize < ActiveThreshold {
				continue
			}
			entry := model.LedgerEntry{
				CompanyName:    p.CompanyName,
				CountryCode:    p.CountryCode,
				CountryName:    p.CountryName,
				CountryFlag:    p.CountryFlag,
				PositionSize:   p.PositionSize,
				DisclosureDate: p.Date.UTC().Format(model.ISODate),
			}

			if i == 0 {
				current = append(current, entry)
			} else {
				// The superseding record marks the exit even when it is
				// itself below threshold.
				entry.ExitDate = rows[i-1].Date.UTC().Format(model.ISODate)
				historical = append(historical, entry)
			}

			// Facet covers only countries with emitted entries.
			if !seen[p.CountryName] && p.CountryName != "" {
				seen[p.CountryName] = true
				countries = append(countries, p.CountryName)
			}
		}
	}

	sort.SliceStable(current, func(i, j int) bool {
		return current[i].PositionSize > current[j].PositionSize
	})
	sort.SliceStable(historical, func(i, j int) bool {
		return historical[i].ExitDate > historical[j].ExitDate
	})
	if len(historical) > historicalLimit {
		historical = historical[:historicalLimit]
	}
	sort.Strings(countries)
	if countries == nil {
		countries = []string{}
	}
	return current, historical, countries
}
