// Package plans saves generated itineraries per user and reads them back.
// Every operation returns a Result instead of an error so handlers can show
// the message inline.
package plans

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"time"

	"wanderplan/db"
	"wanderplan/models"

	"github.com/google/uuid"
)

// MaxNameAttempts bounds the retries after a plan name collision.
const MaxNameAttempts = 3

type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

func ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: v}
}

func fail[T any](action string, err error) Result[T] {
	return Result[T]{Error: Message(action, err), Err: err}
}

// Message renders err for display. Known errors carry their own wording.
func Message(action string, err error) string {
	var verr *models.ValidationError
	var nerr *NameConflictError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &nerr):
		return nerr.Error()
	case errors.Is(err, db.ErrNotFound):
		return "旅行计划不存在"
	}
	return action + "失败: " + err.Error()
}

// NameConflictError is returned once every naming attempt collided.
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return "计划名称已存在，请尝试其他名称"
}

type Service struct {
	store db.PlanStore
	now   func() time.Time
}

func NewService(store db.PlanStore) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) uniqueName(ctx context.Context, userID, base string) (string, error) {
	names, err := s.store.PlanNamesWithPrefix(ctx, userID, base)
	if err != nil {
		return "", err
	}
	return UniqueName(names, base), nil
}

// UniqueName looks up the user's names and applies the suffix rule.
func (s *Service) UniqueName(ctx context.Context, userID, base string) (string, error) {
	return s.uniqueName(ctx, userID, base)
}

// nextName is used after a collision: recompute from the store, and if the
// store suggests a name that already failed, bump the last attempt.
func (s *Service) nextName(ctx context.Context, userID, base string, tried []string) (string, error) {
	name, err := s.uniqueName(ctx, userID, base)
	if err != nil {
		return "", err
	}
	if slices.Contains(tried, name) {
		name = bumpName(tried[len(tried)-1])
	}
	return name, nil
}

// Save stores it under planName (or a generated default) made unique for
// the user.
func (s *Service) Save(ctx context.Context, userID string, it models.Itinerary, req models.TripRequest, planName string) Result[models.SavedPlan] {
	const action = "保存旅行计划"
	if userID == "" {
		return fail[models.SavedPlan](action, models.Invalid("userId", "请先登录"))
	}

	now := s.now().UTC()
	base := strings.TrimSpace(planName)
	if base == "" {
		base = DefaultName(it.Destination, s.now())
	}

	row := db.PlanRow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Destination: it.Destination,
		Duration:    it.Duration,
		Travelers:   it.Travelers,
		Budget:      it.Budget.String(),
		CreatedAt:   now,
	}
	var err error
	days := withDefaultBudgets(it.DailyPlans)
	if row.Accommodation, err = encode(it.Accommodation); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	if row.Transportation, err = encode(it.Transportation); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	if row.DailyPlans, err = encode(days); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	if row.Tips, err = encode(it.Tips); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	if row.OriginalRequest, err = encode(req); err != nil {
		return fail[models.SavedPlan](action, err)
	}

	name, err := s.uniqueName(ctx, userID, base)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	var tried []string
	for attempt := 1; ; attempt++ {
		row.PlanName = name
		err = s.store.InsertPlan(ctx, row)
		if !errors.Is(err, db.ErrDuplicateName) {
			break
		}
		log.Printf("plan name %q taken for user %s (attempt %d/%d)", name, userID, attempt, MaxNameAttempts)
		if attempt == MaxNameAttempts {
			return fail[models.SavedPlan](action, &NameConflictError{Name: base})
		}
		tried = append(tried, name)
		if name, err = s.nextName(ctx, userID, base, tried); err != nil {
			return fail[models.SavedPlan](action, err)
		}
	}
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}

	plan, err := decodeStrict(row)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	return ok(plan)
}

// List returns the user's plans, newest first. Nested fields that are not
// valid JSON come back as raw text.
func (s *Service) List(ctx context.Context, userID string) Result[[]models.SavedPlan] {
	const action = "获取旅行计划列表"
	if userID == "" {
		return fail[[]models.SavedPlan](action, models.Invalid("userId", "请先登录"))
	}
	rows, err := s.store.ListPlans(ctx, userID)
	if err != nil {
		return fail[[]models.SavedPlan](action, err)
	}
	out := make([]models.SavedPlan, len(rows))
	for i, r := range rows {
		out[i] = decodeTolerant(r)
	}
	return ok(out)
}

// GetOne fails on malformed nested fields.
func (s *Service) GetOne(ctx context.Context, planID, userID string) Result[models.SavedPlan] {
	const action = "获取旅行计划"
	if err := requireIDs(planID, userID); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	row, err := s.store.GetPlan(ctx, planID, userID)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	plan, err := decodeStrict(row)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	return ok(plan)
}

// Update applies changes. Activities are always returned sorted by time
// within each day, and a renamed plan is made unique again.
func (s *Service) Update(ctx context.Context, planID, userID string, changes models.PlanChanges) Result[models.SavedPlan] {
	const action = "更新旅行计划"
	if err := requireIDs(planID, userID); err != nil {
		return fail[models.SavedPlan](action, err)
	}
	current, err := s.store.GetPlan(ctx, planID, userID)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}

	fields, err := changeFields(current, changes)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	fields["updated_at"] = s.now().UTC()

	var base string
	if changes.PlanName != nil {
		base = strings.TrimSpace(*changes.PlanName)
		if base == "" {
			return fail[models.SavedPlan](action, models.Invalid("plan_name", "计划名称不能为空"))
		}
		if base == current.PlanName {
			base = ""
		} else {
			name, err := s.uniqueName(ctx, userID, base)
			if err != nil {
				return fail[models.SavedPlan](action, err)
			}
			fields["plan_name"] = name
		}
	}

	var row db.PlanRow
	var tried []string
	for attempt := 1; ; attempt++ {
		row, err = s.store.UpdatePlan(ctx, planID, userID, fields)
		if !errors.Is(err, db.ErrDuplicateName) || base == "" {
			break
		}
		failed, _ := fields["plan_name"].(string)
		log.Printf("plan name %q taken for user %s (attempt %d/%d)", failed, userID, attempt, MaxNameAttempts)
		if attempt == MaxNameAttempts {
			return fail[models.SavedPlan](action, &NameConflictError{Name: base})
		}
		tried = append(tried, failed)
		name, err := s.nextName(ctx, userID, base, tried)
		if err != nil {
			return fail[models.SavedPlan](action, err)
		}
		fields["plan_name"] = name
	}
	if errors.Is(err, db.ErrDuplicateName) {
		return fail[models.SavedPlan](action, &NameConflictError{Name: current.PlanName})
	}
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}

	plan, err := decodeStrict(row)
	if err != nil {
		return fail[models.SavedPlan](action, err)
	}
	return ok(plan)
}

// changeFields serializes the edited fields. Daily plans are taken from the
// change or, failing that, from the stored row so their order can be fixed.
func changeFields(current db.PlanRow, c models.PlanChanges) (db.Fields, error) {
	f := db.Fields{}
	if c.Destination != nil {
		f["destination"] = *c.Destination
	}
	if c.Duration != nil {
		if *c.Duration < 0 {
			return nil, models.Invalid("duration", "天数不能为负数")
		}
		f["duration"] = *c.Duration
	}
	if c.Travelers != nil {
		if *c.Travelers < 0 {
			return nil, models.Invalid("travelers", "人数不能为负数")
		}
		f["travelers"] = *c.Travelers
	}
	if c.Budget != nil {
		if c.Budget.IsNegative() {
			return nil, models.Invalid("budget", "预算不能为负数")
		}
		f["budget"] = c.Budget.String()
	}
	if c.Accommodation != nil {
		text, err := encode(*c.Accommodation)
		if err != nil {
			return nil, err
		}
		f["accommodation"] = text
	}
	if c.Transportation != nil {
		text, err := encode(*c.Transportation)
		if err != nil {
			return nil, err
		}
		f["transportation"] = text
	}
	if c.Tips != nil {
		text, err := encode(*c.Tips)
		if err != nil {
			return nil, err
		}
		f["tips"] = text
	}
	if c.OriginalRequest != nil {
		text, err := encode(*c.OriginalRequest)
		if err != nil {
			return nil, err
		}
		f["original_request"] = text
	}

	var days []models.DayPlan
	changed := false
	if c.DailyPlans != nil {
		days = withDefaultBudgets(*c.DailyPlans)
		changed = true
	} else if stored, err := strict[[]models.DayPlan]("daily_plans", current.DailyPlans); err == nil {
		days, _ = stored.Value()
	}
	if sortByTime(days) {
		changed = true
	}
	if changed {
		text, err := encode(days)
		if err != nil {
			return nil, err
		}
		f["daily_plans"] = text
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, planID, userID string) Result[bool] {
	const action = "删除旅行计划"
	if err := requireIDs(planID, userID); err != nil {
		return fail[bool](action, err)
	}
	if err := s.store.DeletePlan(ctx, planID, userID); err != nil {
		return fail[bool](action, err)
	}
	return ok(true)
}

func requireIDs(planID, userID string) error {
	if userID == "" {
		return models.Invalid("userId", "请先登录")
	}
	if planID == "" {
		return models.Invalid("planId", "缺少计划ID")
	}
	return nil
}
