// Package model defines the reference entities, disclosure events, and
// analytics payload types shared across the application.
package model

// Country is a regulator jurisdiction. Each country publishes its own
// short-selling disclosures and carries its own trading calendar, keyed
// by Code.
type Country struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Flag     string `json:"flag"`
	Priority string `json:"priority,omitempty"`
	URL      string `json:"url,omitempty"`
	IsActive bool   `json:"is_active"`
}
