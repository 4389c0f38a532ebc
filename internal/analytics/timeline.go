package analytics

import (
	"sort"
	"time"

	"github.com/shorttrack/shorttrack/internal/calendar"
	"github.com/shorttrack/shorttrack/internal/model"
)

// ReconstructTimeline builds a gap-free business-day series of
// aggregate active exposure for one company from its full disclosure
// history. For every business day in [max(cutoff, today-lookbackDays),
// today], each manager contributes its latest disclosure dated on or
// before that day, provided the carried value is at or above
// ActiveThreshold. Days with no contributions still appear with a zero
// total.
//
// The function is pure: output depends only on the event set, the
// window, and the injected calendar.
func ReconstructTimeline(events []model.TimelineEvent, countryCode string, cutoff, today time.Time, lookbackDays int, cal calendar.Provider) []model.TimelinePoint {
	byManager := make(map[string][]model.TimelineEvent)
	for _, e := range events {
		byManager[e.ManagerName] = append(byManager[e.ManagerName], e)
	}
	managers := make([]string, 0, len(byManager))
	for name, evs := range byManager {
		sort.Slice(evs, func(i, j int) bool { return evs[i].Date.Before(evs[j].Date) })
		managers = append(managers, name)
	}
	sort.Strings(managers)

	end := dateOnly(today)
	start := dateOnly(today.AddDate(0, 0, -lookbackDays))
	if c := dateOnly(cutoff); c.After(start) {
		start = c
	}

	// Last-seen event index per manager, carried across days so the
	// whole reconstruction is a single forward scan per manager.
	applied := make(map[string]int, len(managers))
	for _, name := range managers {
		applied[name] = -1
	}

	var timeline []model.TimelinePoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if !cal.IsTradingDay(countryCode, day) {
			continue
		}

		point := model.TimelinePoint{
			Date:             day.Format(model.ISODate),
			ManagerPositions: []model.ManagerPosition{},
		}
		for _, name := range managers {
			evs := byManager[name]
			idx := applied[name]
			for idx+1 < len(evs) && !dateOnly(evs[idx+1].Date).After(day) {
				idx++
			}
			applied[name] = idx
			if idx < 0 {
				continue // no disclosure yet as of this day
			}
			if size := evs[idx].PositionSize; size >= ActiveThreshold {
				point.ManagerPositions = append(point.ManagerPositions, model.ManagerPosition{
					ManagerName:  name,
					PositionSize: size,
				})
				point.TotalPosition += size
			}
		}
		timeline = append(timeline, point)
	}
	return timeline
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
