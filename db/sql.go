package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pocketbase/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TimeLayout is how timestamps are written to TEXT columns. Fixed width so
// that string order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS travel_plans (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		plan_name        TEXT NOT NULL,
		destination      TEXT NOT NULL DEFAULT '',
		duration         INTEGER NOT NULL DEFAULT 0,
		travelers        INTEGER NOT NULL DEFAULT 0,
		budget           TEXT NOT NULL DEFAULT '0',
		accommodation    TEXT NOT NULL DEFAULT '',
		transportation   TEXT NOT NULL DEFAULT '',
		daily_plans      TEXT NOT NULL DEFAULT '',
		tips             TEXT NOT NULL DEFAULT '',
		original_request TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT,
		UNIQUE (user_id, plan_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_travel_plans_user_created ON travel_plans (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id             TEXT PRIMARY KEY,
		travel_plan_id TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		item           TEXT NOT NULL,
		amount         TEXT NOT NULL,
		created_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_plan_created ON expenses (travel_plan_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		preference TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_preferences_user ON user_preferences (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_system_configs (
		user_id           TEXT PRIMARY KEY,
		llm_api_key       TEXT NOT NULL DEFAULT '',
		llm_api_base_url  TEXT NOT NULL DEFAULT '',
		baidu_map_api_key TEXT NOT NULL DEFAULT '',
		updated_at        TEXT NOT NULL
	)`,
}

// SQLStore implements Store on Postgres or SQLite.
type SQLStore struct {
	db *dbx.DB
}

// OpenSQL opens driver ("postgres" or "sqlite") and creates missing tables.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store needs a data source name", driver)
	}
	conn, err := dbx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		conn.DB().SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.DB().PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := conn.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &SQLStore{db: conn}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlPlan struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	PlanName        string         `db:"plan_name"`
	Destination     string         `db:"destination"`
	Duration        int            `db:"duration"`
	Travelers       int            `db:"travelers"`
	Budget          string         `db:"budget"`
	Accommodation   string         `db:"accommodation"`
	Transportation  string         `db:"transportation"`
	DailyPlans      string         `db:"daily_plans"`
	Tips            string         `db:"tips"`
	OriginalRequest string         `db:"original_request"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       sql.NullString `db:"updated_at"`
}

func (p sqlPlan) row() PlanRow {
	r := PlanRow{
		ID:              p.ID,
		UserID:          p.UserID,
		PlanName:        p.PlanName,
		Destination:     p.Destination,
		Duration:        p.Duration,
		Travelers:       p.Travelers,
		Budget:          p.Budget,
		Accommodation:   p.Accommodation,
		Transportation:  p.Transportation,
		DailyPlans:      p.DailyPlans,
		Tips:            p.Tips,
		OriginalRequest: p.OriginalRequest,
		CreatedAt:       parseTime(p.CreatedAt),
	}
	if p.UpdatedAt.Valid && p.UpdatedAt.String != "" {
		t := parseTime(p.UpdatedAt.String)
		r.UpdatedAt = &t
	}
	return r
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func (s *SQLStore) PlanNamesWithPrefix(ctx context.Context, userID, prefix string) ([]string, error) {
	var names []string
	err := s.db.Select("plan_name").
		From("travel_plans").
		Where(dbx.HashExp{"user_id": userID}).
		AndWhere(dbx.NewExp(`plan_name LIKE {:pattern} ESCAPE '\'`, dbx.Params{"pattern": escapeLike(prefix) + "%"})).
		WithContext(ctx).
		Column(&names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLStore) InsertPlan(ctx context.Context, r PlanRow) error {
	params := dbx.Params{
		"id":               r.ID,
		"user_id":          r.UserID,
		"plan_name":        r.PlanName,
		"destination":      r.Destination,
		"duration":         r.Duration,
		"travelers":        r.Travelers,
		"budget":           r.Budget,
		"accommodation":    r.Accommodation,
		"transportation":   r.Transportation,
		"daily_plans":      r.DailyPlans,
		"tips":             r.Tips,
		"original_request": r.OriginalRequest,
		"created_at":       formatTime(r.CreatedAt),
	}
	if r.UpdatedAt != nil {
		params["updated_at"] = formatTime(*r.UpdatedAt)
	}
	_, err := s.db.Insert("travel_plans", params).WithContext(ctx).Execute()
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

func (s *SQLStore) ListPlans(ctx context.Context, userID string) ([]PlanRow, error) {
	var rows []sqlPlan
	err := s.db.Select("*").
		From("travel_plans").
		Where(dbx.HashExp{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]PlanRow, len(rows))
	for i, r := range rows {
		out[i] = r.row()
	}
	return out, nil
}

func (s *SQLStore) GetPlan(ctx context.Context, planID, userID string) (PlanRow, error) {
	var r sqlPlan
	err := s.db.Select("*").
		From("travel_plans").
		Where(dbx.HashExp{"id": planID, "user_id": userID}).
		WithContext(ctx).
		One(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRow{}, ErrNotFound
	}
	if err != nil {
		return PlanRow{}, err
	}
	return r.row(), nil
}

func (s *SQLStore) UpdatePlan(ctx context.Context, planID, userID string, fields Fields) (PlanRow, error) {
	if len(fields) > 0 {
		params := dbx.Params{}
		for k, v := range fields {
			if t, ok := v.(time.Time); ok {
				v = formatTime(t)
			}
			params[k] = v
		}
		res, err := s.db.Update("travel_plans", params, dbx.HashExp{"id": planID, "user_id": userID}).
			WithContext(ctx).
			Execute()
		if isUniqueViolation(err) {
			return PlanRow{}, ErrDuplicateName
		}
		if err != nil {
			return PlanRow{}, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return PlanRow{}, ErrNotFound
		}
	}
	return s.GetPlan(ctx, planID, userID)
}

func (s *SQLStore) DeletePlan(ctx context.Context, planID, userID string) error {
	return s.deleteOwned(ctx, "travel_plans", "id", planID, userID)
}

func (s *SQLStore) deleteOwned(ctx context.Context, table, idCol, id, userID string) error {
	res, err := s.db.Delete(table, dbx.HashExp{idCol: id, "user_id": userID}).WithContext(ctx).Execute()
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqlExpense struct {
	ID           string `db:"id"`
	TravelPlanID string `db:"travel_plan_id"`
	UserID       string `db:"user_id"`
	Item         string `db:"item"`
	Amount       string `db:"amount"`
	CreatedAt    string `db:"created_at"`
}

func (s *SQLStore) InsertExpense(ctx context.Context, r ExpenseRow) error {
	_, err := s.db.Insert("expenses", dbx.Params{
		"id":             r.ID,
		"travel_plan_id": r.TravelPlanID,
		"user_id":        r.UserID,
		"item":           r.Item,
		"amount":         r.Amount,
		"created_at":     formatTime(r.CreatedAt),
	}).WithContext(ctx).Execute()
	return err
}

func (s *SQLStore) ListExpenses(ctx context.Context, planID, userID string) ([]ExpenseRow, error) {
	var rows []sqlExpense
	err := s.db.Select("*").
		From("expenses").
		Where(dbx.HashExp{"travel_plan_id": planID, "user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]ExpenseRow, len(rows))
	for i, r := range rows {
		out[i] = ExpenseRow{
			ID:           r.ID,
			TravelPlanID: r.TravelPlanID,
			UserID:       r.UserID,
			Item:         r.Item,
			Amount:       r.Amount,
			CreatedAt:    parseTime(r.CreatedAt),
		}
	}
	return out, nil
}

func (s *SQLStore) DeleteExpense(ctx context.Context, id, userID string) error {
	return s.deleteOwned(ctx, "expenses", "id", id, userID)
}

type sqlPreference struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	Preference string `db:"preference"`
	CreatedAt  string `db:"created_at"`
}

func (s *SQLStore) InsertPreference(ctx context.Context, r PreferenceRow) error {
	_, err := s.db.Insert("user_preferences", dbx.Params{
		"id":         r.ID,
		"user_id":    r.UserID,
		"preference": r.Preference,
		"created_at": formatTime(r.CreatedAt),
	}).WithContext(ctx).Execute()
	return err
}

func (s *SQLStore) ListPreferences(ctx context.Context, userID string) ([]PreferenceRow, error) {
	var rows []sqlPreference
	err := s.db.Select("*").
		From("user_preferences").
		Where(dbx.HashExp{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]PreferenceRow, len(rows))
	for i, r := range rows {
		out[i] = PreferenceRow{ID: r.ID, UserID: r.UserID, Preference: r.Preference, CreatedAt: parseTime(r.CreatedAt)}
	}
	return out, nil
}

func (s *SQLStore) DeletePreference(ctx context.Context, id, userID string) error {
	return s.deleteOwned(ctx, "user_preferences", "id", id, userID)
}

type sqlConfig struct {
	UserID        string `db:"user_id"`
	LLMAPIKey     string `db:"llm_api_key"`
	LLMAPIBaseURL string `db:"llm_api_base_url"`
	MapAPIKey     string `db:"baidu_map_api_key"`
	UpdatedAt     string `db:"updated_at"`
}

func (s *SQLStore) GetSystemConfig(ctx context.Context, userID string) (ConfigRow, error) {
	var r sqlConfig
	err := s.db.Select("*").
		From("user_system_configs").
		Where(dbx.HashExp{"user_id": userID}).
		WithContext(ctx).
		One(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return ConfigRow{}, ErrNotFound
	}
	if err != nil {
		return ConfigRow{}, err
	}
	return ConfigRow{
		UserID:        r.UserID,
		LLMAPIKey:     r.LLMAPIKey,
		LLMAPIBaseURL: r.LLMAPIBaseURL,
		MapAPIKey:     r.MapAPIKey,
		UpdatedAt:     parseTime(r.UpdatedAt),
	}, nil
}

// UpsertSystemConfig relies on ON CONFLICT, which both Postgres and SQLite
// accept.
func (s *SQLStore) UpsertSystemConfig(ctx context.Context, r ConfigRow) error {
	_, err := s.db.NewQuery(`
		INSERT INTO user_system_configs (user_id, llm_api_key, llm_api_base_url, baidu_map_api_key, updated_at)
		VALUES ({:user_id}, {:llm_api_key}, {:llm_api_base_url}, {:baidu_map_api_key}, {:updated_at})
		ON CONFLICT (user_id) DO UPDATE SET
			llm_api_key = excluded.llm_api_key,
			llm_api_base_url = excluded.llm_api_base_url,
			baidu_map_api_key = excluded.baidu_map_api_key,
			updated_at = excluded.updated_at`).
		Bind(dbx.Params{
			"user_id":           r.UserID,
			"llm_api_key":       r.LLMAPIKey,
			"llm_api_base_url":  r.LLMAPIBaseURL,
			"baidu_map_api_key": r.MapAPIKey,
			"updated_at":        formatTime(r.UpdatedAt),
		}).
		WithContext(ctx).
		Execute()
	return err
}

func (s *SQLStore) DeleteSystemConfig(ctx context.Context, userID string) error {
	_, err := s.db.Delete("user_system_configs", dbx.HashExp{"user_id": userID}).WithContext(ctx).Execute()
	return err
}

// isUniqueViolation recognizes Postgres 23505 and SQLite UNIQUE constraint
// failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
