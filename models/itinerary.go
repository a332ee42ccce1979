package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Activity types the planner prompt asks for. Models are free to answer with
// anything else, so Activity.Type stays a plain string.
const (
	ActivitySight     = "景点"
	ActivityDining    = "餐饮"
	ActivityTransport = "交通"
	ActivityShopping  = "购物"
	ActivityOther     = "其他"
)

// DefaultActivityBudget is filled in for activities saved without a budget.
const DefaultActivityBudget = "50元"

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Activity is one scheduled event within a day.
type Activity struct {
	Time        string       `json:"time"` // HH:MM
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Budget      string       `json:"budget,omitempty"` // display only, e.g. "60元"
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Address     string       `json:"address,omitempty"`
}

// Located reports whether the activity was geocoded.
func (a Activity) Located() bool {
	return a.Coordinates != nil
}

type DayPlan struct {
	Day        int        `json:"day"`
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

// Itinerary is the canonical plan shape. Both model answer shapes are
// converted to this one by the normalize package.
type Itinerary struct {
	Destination    string          `json:"destination"`
	Duration       int             `json:"duration"`
	Travelers      int             `json:"travelers"`
	Budget         decimal.Decimal `json:"budget"`
	Accommodation  Detail          `json:"accommodation"`
	Transportation Detail          `json:"transportation"`
	DailyPlans     []DayPlan       `json:"dailyPlans"`
	Tips           []string        `json:"tips"`
}

// DayCountWarning returns a non-empty message when the number of day plans
// differs from the declared duration. Mismatches are accepted as-is.
func (it Itinerary) DayCountWarning() string {
	if it.Duration == 0 || len(it.DailyPlans) == it.Duration {
		return ""
	}
	return fmt.Sprintf("行程天数为%d天，但实际安排了%d天的行程", it.Duration, len(it.DailyPlans))
}

// Detail is an accommodation or transportation block. Models answer with
// prose or with a JSON object/array, so the raw JSON value is kept as is.
type Detail struct {
	raw json.RawMessage
}

// TextDetail wraps plain prose.
func TextDetail(s string) Detail {
	b, _ := json.Marshal(s)
	return Detail{raw: b}
}

// DetailOf marshals any JSON-encodable value into a Detail.
func DetailOf(v any) Detail {
	b, err := json.Marshal(v)
	if err != nil {
		return Detail{}
	}
	return Detail{raw: b}
}

func (d Detail) IsZero() bool {
	return len(d.raw) == 0 || bytes.Equal(d.raw, []byte("null"))
}

// IsText reports whether the block is a JSON string.
func (d Detail) IsText() bool {
	return !d.IsZero() && d.raw[0] == '"'
}

// Text returns the prose, or the compact JSON for structured blocks.
func (d Detail) Text() string {
	if d.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.raw, &s); err == nil {
		return s
	}
	return string(d.raw)
}

func (d Detail) Raw() json.RawMessage {
	return d.raw
}

func (d Detail) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return d.raw, nil
}

func (d *Detail) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("detail: invalid JSON")
	}
	d.raw = append(d.raw[:0], data...)
	return nil
}
