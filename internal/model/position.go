package model

import "time"

// Position is a single disclosure event: a manager's reported net short
// position in a company as of Date, expressed as a percent of share
// capital. Display fields for the manager, company, and country come
// joined from the store. IsActive is the ingestion-maintained
// current-state flag; the analytics layer trusts it for snapshot
// aggregation and ignores it when replaying full history.
type Position struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"date"`
	PositionSize float64   `json:"position_size"`
	IsActive     bool      `json:"is_active"`

	CompanyID   int64  `json:"company_id"`
	CompanyName string `json:"company_name"`

	ManagerID   int64  `json:"manager_id"`
	ManagerName string `json:"manager_name"`
	ManagerSlug string `json:"manager_slug,omitempty"`

	CountryID   int64  `json:"country_id"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	CountryFlag string `json:"country_flag,omitempty"`
}

// TimelineEvent is the minimal disclosure view needed to reconstruct a
// company's day-by-day exposure series.
type TimelineEvent struct {
	ManagerName  string
	Date         time.Time
	PositionSize float64
}

// DisclosureRecord is the normalized flat row used by the CSV backup
// import and export commands. Reference entities are identified by
// name and country code, not by database id, so backups are portable.
type DisclosureRecord struct {
	Date         string  `csv:"date" json:"date"`
	CountryCode  string  `csv:"country_code" json:"country_code"`
	CompanyName  string  `csv:"company_name" json:"company_name"`
	ISIN         string  `csv:"isin,omitempty" json:"isin,omitempty"`
	ManagerName  string  `csv:"manager_name" json:"manager_name"`
	PositionSize float64 `csv:"position_size" json:"position_size"`
	IsActive     bool    `csv:"is_active" json:"is_active"`
}
