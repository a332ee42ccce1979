package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Stored is a nested plan field read back from its text column. Older rows
// hold plain text instead of JSON, so a value is either parsed or raw and
// callers have to handle both.
type Stored[T any] struct {
	value  T
	raw    string
	parsed bool
}

func ParsedValue[T any](v T) Stored[T] {
	return Stored[T]{value: v, parsed: true}
}

func RawValue[T any](s string) Stored[T] {
	return Stored[T]{raw: s}
}

// Value returns the decoded value and true, or the zero value and false for
// a raw column.
func (s Stored[T]) Value() (T, bool) {
	return s.value, s.parsed
}

func (s Stored[T]) Parsed() bool {
	return s.parsed
}

// RawText is the column text that failed to decode.
func (s Stored[T]) RawText() string {
	return s.raw
}

func (s Stored[T]) MarshalJSON() ([]byte, error) {
	if s.parsed {
		return json.Marshal(s.value)
	}
	return json.Marshal(s.raw)
}

func (s *Stored[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		*s = ParsedValue(v)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RawValue[T](raw)
	return nil
}

// SavedPlan is an itinerary persisted for one user.
type SavedPlan struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	PlanName        string              `json:"plan_name"`
	Destination     string              `json:"destination"`
	Duration        int                 `json:"duration"`
	Travelers       int                 `json:"travelers"`
	Budget          decimal.Decimal     `json:"budget"`
	Accommodation   Stored[Detail]      `json:"accommodation"`
	Transportation  Stored[Detail]      `json:"transportation"`
	DailyPlans      Stored[[]DayPlan]   `json:"daily_plans"`
	Tips            Stored[[]string]    `json:"tips"`
	OriginalRequest Stored[TripRequest] `json:"original_request"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`
}

// Itinerary rebuilds the itinerary from the plan. Raw fields come back as
// zero values and ok is false.
func (p SavedPlan) Itinerary() (it Itinerary, ok bool) {
	ok = true
	it = Itinerary{
		Destination: p.Destination,
		Duration:    p.Duration,
		Travelers:   p.Travelers,
		Budget:      p.Budget,
	}
	var parsed bool
	if it.Accommodation, parsed = p.Accommodation.Value(); !parsed {
		ok = false
	}
	if it.Transportation, parsed = p.Transportation.Value(); !parsed {
		ok = false
	}
	if it.DailyPlans, parsed = p.DailyPlans.Value(); !parsed {
		ok = false
	}
	if it.Tips, parsed = p.Tips.Value(); !parsed {
		ok = false
	}
	return it, ok
}

// PlanChanges carries the fields of an edit. Nil fields are left alone.
type PlanChanges struct {
	PlanName        *string          `json:"plan_name,omitempty"`
	Destination     *string          `json:"destination,omitempty"`
	Duration        *int             `json:"duration,omitempty"`
	Travelers       *int             `json:"travelers,omitempty"`
	Budget          *decimal.Decimal `json:"budget,omitempty"`
	Accommodation   *Detail          `json:"accommodation,omitempty"`
	Transportation  *Detail          `json:"transportation,omitempty"`
	DailyPlans      *[]DayPlan       `json:"daily_plans,omitempty"`
	Tips            *[]string        `json:"tips,omitempty"`
	OriginalRequest *TripRequest     `json:"original_request,omitempty"`
}
