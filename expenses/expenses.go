// Package expenses records what was actually spent on a saved plan.
package expenses

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"wanderplan/db"
	"wanderplan/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

type Service struct {
	store db.ExpenseStore
	plans db.PlanStore
	now   func() time.Time
}

func NewService(store db.ExpenseStore, plans db.PlanStore) *Service {
	return &Service{store: store, plans: plans, now: time.Now}
}

// Add logs one expense against a plan the user owns.
func (s *Service) Add(ctx context.Context, userID, planID, item string, amount decimal.Decimal) (models.ExpenseRecord, error) {
	item = strings.TrimSpace(item)
	switch {
	case userID == "":
		return models.ExpenseRecord{}, models.Invalid("userId", "请先登录")
	case planID == "":
		return models.ExpenseRecord{}, models.Invalid("travelPlanId", "请先选择旅行计划")
	case item == "":
		return models.ExpenseRecord{}, models.Invalid("item", "请输入费用项目")
	case !amount.IsPositive():
		return models.ExpenseRecord{}, models.Invalid("amount", "请输入有效的费用金额")
	}

	if _, err := s.plans.GetPlan(ctx, planID, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.ExpenseRecord{}, models.Invalid("travelPlanId", "旅行计划不存在")
		}
		return models.ExpenseRecord{}, err
	}

	rec := models.ExpenseRecord{
		ID:           uuid.NewString(),
		TravelPlanID: planID,
		UserID:       userID,
		Item:         item,
		Amount:       amount,
		CreatedAt:    s.now().UTC(),
	}
	err := s.store.InsertExpense(ctx, db.ExpenseRow{
		ID:           rec.ID,
		TravelPlanID: rec.TravelPlanID,
		UserID:       rec.UserID,
		Item:         rec.Item,
		Amount:       rec.Amount.String(),
		CreatedAt:    rec.CreatedAt,
	})
	if err != nil {
		return models.ExpenseRecord{}, err
	}
	return rec, nil
}

// List returns the plan's expenses, newest first, with their sum.
func (s *Service) List(ctx context.Context, planID, userID string) (models.ExpenseSummary, error) {
	if userID == "" {
		return models.ExpenseSummary{}, models.Invalid("userId", "请先登录")
	}
	if planID == "" {
		return models.ExpenseSummary{}, models.Invalid("travelPlanId", "请先选择旅行计划")
	}
	rows, err := s.store.ListExpenses(ctx, planID, userID)
	if err != nil {
		return models.ExpenseSummary{}, err
	}

	sum := models.ExpenseSummary{Expenses: make([]models.ExpenseRecord, 0, len(rows)), Total: decimal.Zero}
	for _, r := range rows {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		sum.Expenses = append(sum.Expenses, models.ExpenseRecord{
			ID:           r.ID,
			TravelPlanID: r.TravelPlanID,
			UserID:       r.UserID,
			Item:         r.Item,
			Amount:       amount,
			CreatedAt:    r.CreatedAt,
		})
		sum.Total = sum.Total.Add(amount)
	}
	return sum, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if userID == "" {
		return models.Invalid("userId", "请先登录")
	}
	if id == "" {
		return models.Invalid("id", "缺少费用记录ID")
	}
	return s.store.DeleteExpense(ctx, id, userID)
}

var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractAmount pulls the first number out of recognized speech such as
// "午饭花了３５.５元". Full-width digits are narrowed first.
func ExtractAmount(text string) (decimal.Decimal, bool) {
	m := amountPattern.FindString(width.Narrow.String(text))
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
