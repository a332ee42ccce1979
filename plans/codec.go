package plans

import (
	"encoding/json"
	"fmt"
	"sort"

	"wanderplan/db"
	"wanderplan/models"

	"github.com/shopspring/decimal"
)

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// tolerant keeps text that does not decode as a raw value.
func tolerant[T any](text string) models.Stored[T] {
	var v T
	if text == "" {
		return models.ParsedValue(v)
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return models.RawValue[T](text)
	}
	return models.ParsedValue(v)
}

func strict[T any](column, text string) (models.Stored[T], error) {
	var v T
	if text == "" {
		return models.ParsedValue(v), nil
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return models.Stored[T]{}, fmt.Errorf("malformed %s: %w", column, err)
	}
	return models.ParsedValue(v), nil
}

func decodeTolerant(r db.PlanRow) models.SavedPlan {
	p := header(r)
	p.Budget, _ = decimal.NewFromString(r.Budget)
	p.Accommodation = tolerant[models.Detail](r.Accommodation)
	p.Transportation = tolerant[models.Detail](r.Transportation)
	p.DailyPlans = tolerant[[]models.DayPlan](r.DailyPlans)
	p.Tips = tolerant[[]string](r.Tips)
	p.OriginalRequest = tolerant[models.TripRequest](r.OriginalRequest)
	return p
}

func decodeStrict(r db.PlanRow) (models.SavedPlan, error) {
	p := header(r)
	var err error
	if r.Budget != "" {
		if p.Budget, err = decimal.NewFromString(r.Budget); err != nil {
			return p, fmt.Errorf("malformed budget: %w", err)
		}
	}
	if p.Accommodation, err = strict[models.Detail]("accommodation", r.Accommodation); err != nil {
		return p, err
	}
	if p.Transportation, err = strict[models.Detail]("transportation", r.Transportation); err != nil {
		return p, err
	}
	if p.DailyPlans, err = strict[[]models.DayPlan]("daily_plans", r.DailyPlans); err != nil {
		return p, err
	}
	if p.Tips, err = strict[[]string]("tips", r.Tips); err != nil {
		return p, err
	}
	if p.OriginalRequest, err = strict[models.TripRequest]("original_request", r.OriginalRequest); err != nil {
		return p, err
	}
	return p, nil
}

func header(r db.PlanRow) models.SavedPlan {
	return models.SavedPlan{
		ID:          r.ID,
		UserID:      r.UserID,
		PlanName:    r.PlanName,
		Destination: r.Destination,
		Duration:    r.Duration,
		Travelers:   r.Travelers,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// withDefaultBudgets returns a copy where activities without a budget get
// models.DefaultActivityBudget.
func withDefaultBudgets(days []models.DayPlan) []models.DayPlan {
	if days == nil {
		return nil
	}
	out := make([]models.DayPlan, len(days))
	for i, d := range days {
		out[i] = d
		out[i].Activities = make([]models.Activity, len(d.Activities))
		for j, a := range d.Activities {
			if a.Budget == "" {
				a.Budget = models.DefaultActivityBudget
			}
			out[i].Activities[j] = a
		}
	}
	return out
}

// sortByTime orders each day's activities by time, keeping the relative
// order of equal times. It reports whether anything moved.
func sortByTime(days []models.DayPlan) bool {
	moved := false
	for _, d := range days {
		if !sort.SliceIsSorted(d.Activities, func(i, j int) bool { return d.Activities[i].Time < d.Activities[j].Time }) {
			moved = true
			sort.SliceStable(d.Activities, func(i, j int) bool { return d.Activities[i].Time < d.Activities[j].Time })
		}
	}
	return moved
}
