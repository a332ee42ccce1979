package models

import "github.com/shopspring/decimal"

// TripRequest is what the user submitted. Either FreeText is set, or the
// structured fields are.
type TripRequest struct {
	FreeText    string          `json:"freeText,omitempty"`
	Destination string          `json:"destination,omitempty"`
	StartDate   string          `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate     string          `json:"endDate,omitempty"`   // YYYY-MM-DD
	Budget      decimal.Decimal `json:"budget,omitzero"`
	PeopleCount int             `json:"peopleCount,omitempty"`
	Preferences []string        `json:"preferences,omitempty"`
}

// Structured reports whether the request uses the form fields rather than
// free text.
func (r TripRequest) Structured() bool {
	return r.FreeText == "" && (r.Destination != "" || r.StartDate != "" || r.EndDate != "")
}
