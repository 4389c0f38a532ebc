package model

import "time"

// ISODate is the wire format for all dates in analytics payloads.
const ISODate = "2006-01-02"

// FormatDate renders t as an ISO calendar date, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISODate)
}

// CompanyRanking is one row of a "most shorted companies" ranking.
type CompanyRanking struct {
	CompanyID              int64   `json:"company_id"`
	CompanyName            string  `json:"company_name"`
	TotalShortExposure     float64 `json:"total_short_exposure"`
	AveragePositionSize    float64 `json:"average_position_size"`
	PositionCount          int     `json:"position_count"`
	WeekDelta              float64 `json:"week_delta"`
	MostRecentPositionDate string  `json:"most_recent_position_date,omitempty"`
}

// ManagerRanking is one row of a "top managers" ranking. Country-scope
// rankings order by TotalExposure, global rankings by ActivePositions.
type ManagerRanking struct {
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	ActivePositions int     `json:"active_positions"`
	TotalExposure   float64 `json:"total_exposure"`
}

// CountryAnalytics is the country dashboard payload. When the country
// has no qualifying disclosures, Message is set and the lists are empty.
type CountryAnalytics struct {
	Country              Country          `json:"country"`
	LatestDate           string           `json:"latest_date,omitempty"`
	MostShortedCompanies []CompanyRanking `json:"most_shorted_companies"`
	TopManagers          []ManagerRanking `json:"top_managers"`
	TotalActivePositions int              `json:"total_active_positions"`
	Message              string           `json:"message,omitempty"`
}

// ManagerPosition is one manager's contribution to a timeline day.
type ManagerPosition struct {
	ManagerName  string  `json:"manager_name"`
	PositionSize float64 `json:"position_size"`
}

// TimelinePoint is one business day in a company exposure series. Days
// with no active managers still appear, with a zero total.
type TimelinePoint struct {
	Date             string            `json:"date"`
	TotalPosition    float64           `json:"total_position"`
	ManagerPositions []ManagerPosition `json:"manager_positions"`
}

// CompanyTimeline is the company analytics payload.
type CompanyTimeline struct {
	Company           Company         `json:"company"`
	Timeframe         string          `json:"timeframe"`
	PositionsOverTime []TimelinePoint `json:"positions_over_time"`
}

// LedgerEntry is one position in a manager's ledger. ExitDate is set
// only on historical entries: the date of the disclosure that
// superseded it, or today when the position fell below threshold and
// was never re-disclosed.
type LedgerEntry struct {
	CompanyName    string  `json:"company_name"`
	CountryName    string  `json:"country_name"`
	CountryFlag    string  `json:"country_flag,omitempty"`
	CountryCode    string  `json:"country_code"`
	PositionSize   float64 `json:"position_size"`
	DisclosureDate string  `json:"disclosure_date"`
	ExitDate       string  `json:"exit_date,omitempty"`
}

// ManagerLedger is the manager analytics payload: current-active and
// historical (exited) positions plus the country filter facet.
type ManagerLedger struct {
	Manager             Manager       `json:"manager"`
	CurrentPositions    []LedgerEntry `json:"current_active_positions"`
	HistoricalPositions []LedgerEntry `json:"historical_positions"`
	Countries           []string      `json:"countries"`
}

// GlobalSummary holds headline counts for the global dashboard,
// restricted to active disclosures within the requested timeframe.
type GlobalSummary struct {
	TotalActivePositions int    `json:"total_active_positions"`
	TotalCountries       int    `json:"total_countries"`
	TotalCompanies       int    `json:"total_companies"`
	TotalManagers        int    `json:"total_managers"`
	LatestDataDate       string `json:"latest_data_date,omitempty"`
}

// CountryActivity is one row of the "top countries" dashboard ranking.
type CountryActivity struct {
	CountryName     string  `json:"country_name"`
	CountryFlag     string  `json:"country_flag,omitempty"`
	ActivePositions int     `json:"active_positions"`
	TotalExposure   float64 `json:"total_exposure"`
}

// TrendPoint is one day of the global positions trend.
type TrendPoint struct {
	Date            string  `json:"date"`
	ActivePositions int     `json:"active_positions"`
	TotalExposure   float64 `json:"total_exposure"`
}

// GlobalRankings is the global analytics payload.
type GlobalRankings struct {
	Timeframe      string            `json:"timeframe"`
	Summary        GlobalSummary     `json:"summary"`
	TopCompanies   []CompanyRanking  `json:"top_companies"`
	TopManagers    []ManagerRanking  `json:"top_managers"`
	TopCountries   []CountryActivity `json:"top_countries"`
	PositionsTrend []TrendPoint      `json:"positions_trend"`
}
