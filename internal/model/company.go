package model

// Company is a listed company that managers disclose short positions in.
// Country display fields are populated by the store joins.
type Company struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	ISIN    string  `json:"isin,omitempty"`
	Country Country `json:"country"`
}
