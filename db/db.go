// Package db persists plans, expenses, preferences and per-user system
// settings. Three backends share one interface: Postgres (Supabase) and
// SQLite through dbx, and MongoDB.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateName = errors.New("plan name already exists for this user")
)

// Fields are column updates keyed by column name.
type Fields map[string]any

// PlanRow is a plan as stored. Nested values are serialized JSON text.
type PlanRow struct {
	ID              string     `bson:"_id"`
	UserID          string     `bson:"user_id"`
	PlanName        string     `bson:"plan_name"`
	Destination     string     `bson:"destination"`
	Duration        int        `bson:"duration"`
	Travelers       int        `bson:"travelers"`
	Budget          string     `bson:"budget"`
	Accommodation   string     `bson:"accommodation"`
	Transportation  string     `bson:"transportation"`
	DailyPlans      string     `bson:"daily_plans"`
	Tips            string     `bson:"tips"`
	OriginalRequest string     `bson:"original_request"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       *time.Time `bson:"updated_at,omitempty"`
}

type ExpenseRow struct {
	ID           string    `bson:"_id"`
	TravelPlanID string    `bson:"travel_plan_id"`
	UserID       string    `bson:"user_id"`
	Item         string    `bson:"item"`
	Amount       string    `bson:"amount"`
	CreatedAt    time.Time `bson:"created_at"`
}

type PreferenceRow struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Preference string    `bson:"preference"`
	CreatedAt  time.Time `bson:"created_at"`
}

// ConfigRow holds sealed (encrypted) values only.
type ConfigRow struct {
	UserID        string    `bson:"_id"`
	LLMAPIKey     string    `bson:"llm_api_key"`
	LLMAPIBaseURL string    `bson:"llm_api_base_url"`
	MapAPIKey     string    `bson:"baidu_map_api_key"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type PlanStore interface {
	// PlanNamesWithPrefix lists the user's plan names starting with prefix.
	PlanNamesWithPrefix(ctx context.Context, userID, prefix string) ([]string, error)
	// InsertPlan returns ErrDuplicateName on a (user_id, plan_name) clash.
	InsertPlan(ctx context.Context, row PlanRow) error
	// ListPlans is newest first.
	ListPlans(ctx context.Context, userID string) ([]PlanRow, error)
	GetPlan(ctx context.Context, planID, userID string) (PlanRow, error)
	// UpdatePlan returns the updated row, ErrNotFound or ErrDuplicateName.
	UpdatePlan(ctx context.Context, planID, userID string, fields Fields) (PlanRow, error)
	DeletePlan(ctx context.Context, planID, userID string) error
}

type ExpenseStore interface {
	InsertExpense(ctx context.Context, row ExpenseRow) error
	// ListExpenses is newest first.
	ListExpenses(ctx context.Context, planID, userID string) ([]ExpenseRow, error)
	DeleteExpense(ctx context.Context, id, userID string) error
}

type PreferenceStore interface {
	InsertPreference(ctx context.Context, row PreferenceRow) error
	ListPreferences(ctx context.Context, userID string) ([]PreferenceRow, error)
	DeletePreference(ctx context.Context, id, userID string) error
}

type ConfigStore interface {
	GetSystemConfig(ctx context.Context, userID string) (ConfigRow, error)
	UpsertSystemConfig(ctx context.Context, row ConfigRow) error
	DeleteSystemConfig(ctx context.Context, userID string) error
}

type Store interface {
	PlanStore
	ExpenseStore
	PreferenceStore
	ConfigStore
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver   string // postgres, sqlite or mongo
	DSN      string // SQL data source name
	MongoURI string
	MongoDB  string
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "postgres", "sqlite":
		s, err := OpenSQL(ctx, opts.Driver, opts.DSN)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ Connected to %s store", opts.Driver)
		return s, nil
	case "mongo":
		s, err := OpenMongo(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ Connected to MongoDB database %q", opts.MongoDB)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}
