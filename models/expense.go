package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseRecord is one spending entry logged against a saved plan.
type ExpenseRecord struct {
	ID           string          `json:"id"`
	TravelPlanID string          `json:"travel_plan_id"`
	UserID       string          `json:"user_id"`
	Item         string          `json:"item"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ExpenseSummary struct {
	Expenses []ExpenseRecord `json:"expenses"`
	Total    decimal.Decimal `json:"total"`
}

type UserPreference struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Preference string    `json:"preference"`
	CreatedAt  time.Time `json:"created_at"`
}

// SystemConfig holds per-user overrides of the service credentials.
// Empty fields fall back to the environment.
type SystemConfig struct {
	LLMAPIKey     string `json:"llmApiKey,omitempty"`
	LLMAPIBaseURL string `json:"llmApiBaseUrl,omitempty"`
	MapAPIKey     string `json:"mapApiKey,omitempty"`
}

func (c SystemConfig) IsZero() bool {
	return c.LLMAPIKey == "" && c.LLMAPIBaseURL == "" && c.MapAPIKey == ""
}
