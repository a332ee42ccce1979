// Package normalize turns raw model output into an Itinerary. It never
// fails: text that cannot be read yields a minimal fallback plan.
package normalize

import (
	"encoding/json"
	"strings"

	"wanderplan/models"

	"github.com/shopspring/decimal"
)

// Step tells which stage produced the itinerary.
type Step int

const (
	StepDirect Step = iota + 1
	StepExtracted
	StepFallback
)

func (s Step) String() string {
	switch s {
	case StepDirect:
		return "direct"
	case StepExtracted:
		return "extracted"
	case StepFallback:
		return "fallback"
	}
	return "unknown"
}

// Shape is the answer layout a model used.
type Shape string

const (
	ShapeLegacy   Shape = "legacy"   // {destination, dailyPlans, ...}
	ShapeOverview Shape = "overview" // {overview, itinerary, ...}
)

type Outcome struct {
	Step  Step
	Shape Shape
}

// Degraded reports whether the caller got the fallback plan.
func (o Outcome) Degraded() bool {
	return o.Step == StepFallback
}

// Normalize returns a best-effort itinerary for any input.
func Normalize(raw string) models.Itinerary {
	it, _ := Parse(raw)
	return it
}

// Parse is Normalize plus a report of how the result was obtained.
func Parse(raw string) (it models.Itinerary, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			it, out = Fallback(), Outcome{Step: StepFallback}
		}
	}()

	if it, shape, ok := decode([]byte(strings.TrimSpace(raw))); ok {
		return it, Outcome{Step: StepDirect, Shape: shape}
	}
	if obj, found := firstObject(raw); found {
		if it, shape, ok := decode([]byte(obj)); ok {
			return it, Outcome{Step: StepExtracted, Shape: shape}
		}
	}
	return Fallback(), Outcome{Step: StepFallback}
}

// Fallback is the one-day plan shown when the answer is unusable.
func Fallback() models.Itinerary {
	return models.Itinerary{
		Destination:    "旅行目的地",
		Duration:       1,
		Travelers:      1,
		Budget:         decimal.Zero,
		Accommodation:  models.TextDetail("市中心推荐酒店"),
		Transportation: models.TextDetail("建议选择公共交通"),
		DailyPlans: []models.DayPlan{{
			Day:  1,
			Date: "",
			Activities: []models.Activity{{
				Time:        "09:00",
				Type:        models.ActivitySight,
				Description: "主要景点游览",
			}},
		}},
		Tips: []string{"请检查您的旅行计划详情", "如有需要，请重新生成计划"},
	}
}

func decode(data []byte) (models.Itinerary, Shape, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return models.Itinerary{}, "", false
	}

	switch {
	case has(probe, "itinerary") || has(probe, "overview"):
		var w overviewWire
		if err := json.Unmarshal(data, &w); err != nil {
			return models.Itinerary{}, "", false
		}
		return w.canonical(), ShapeOverview, true
	case has(probe, "dailyPlans") || has(probe, "destination"):
		var w legacyWire
		if err := json.Unmarshal(data, &w); err != nil {
			return models.Itinerary{}, "", false
		}
		return w.canonical(), ShapeLegacy, true
	}
	return models.Itinerary{}, "", false
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// firstObject returns the first balanced top-level {...} in s. Braces inside
// JSON strings do not count.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
