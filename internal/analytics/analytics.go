// Package analytics turns the sparse stream of point-in-time short
// disclosures into continuous exposure timelines, per-manager ledgers,
// and ranked cross-sectional aggregates.
//
// Two notions of "active" deliberately coexist. Snapshot aggregation
// (country and global rankings) trusts the ingestion-maintained
// is_active flag on each row. Timelines and ledgers ignore the flag and
// replay full disclosure history with carry-forward-until-superseded
// semantics. Neither path is an optimization of the other.
package analytics

import (
	"sort"
	"strings"
)

// ActiveThreshold is the minimum position size, in percent of share
// capital, for a carried-forward position to count as active.
const ActiveThreshold = 0.5

// integrityBarrierDays bounds how far back timeline reconstruction
// reads disclosures. Older rows are unreliable in some source feeds;
// the barrier is applied to every jurisdiction.
const integrityBarrierDays = 730

// topN is the ranking size for company and manager aggregates.
const topN = 10

// historicalLimit caps a manager ledger's historical list to the most
// recent exits.
const historicalLimit = 50

// DefaultTimeframe is used when a caller supplies no or an unknown
// timeframe token.
const DefaultTimeframe = "3m"

var timeframeDays = map[string]int{
	"1w": 7,
	"1m": 30,
	"3m": 90,
	"6m": 180,
	"1y": 365,
}

// NormalizeTimeframe lowercases a timeframe token and substitutes the
// default for anything unrecognized.
func NormalizeTimeframe(tf string) string {
	tf = strings.ToLower(tf)
	if _, ok := timeframeDays[tf]; !ok {
		return DefaultTimeframe
	}
	return tf
}

// Timeframes lists the recognized timeframe tokens, shortest first.
func Timeframes() []string {
	out := make([]string, 0, len(timeframeDays))
	for tf := range timeframeDays {
		out = append(out, tf)
	}
	sort.Slice(out, func(i, j int) bool { return timeframeDays[out[i]] < timeframeDays[out[j]] })
	return out
}

// LookbackDays maps a timeframe token to its lookback window in days.
func LookbackDays(tf string) int {
	if days, ok := timeframeDays[strings.ToLower(tf)]; ok {
		return days
	}
	return timeframeDays[DefaultTimeframe]
}
