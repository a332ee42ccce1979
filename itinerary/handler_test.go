package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wanderplan/db"
	"wanderplan/expenses"
	"wanderplan/globals"
	"wanderplan/llm"
	"wanderplan/models"
	"wanderplan/plans"
	"wanderplan/prefs"
	"wanderplan/rdx"
	"wanderplan/sysconfig"
	"wanderplan/vault"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every completion with text, or fails with err.
type stubProvider struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (s *stubProvider) Complete(_ context.Context, _ llm.Settings, _, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	return s.text, s.err
}

func (s *stubProvider) answer(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

const threeDayAnswer = `{
  "destination": "北京",
  "duration": 3,
  "travelers": 2,
  "budget": 5000,
  "accommodation": "王府井附近酒店",
  "transportation": "地铁出行",
  "dailyPlans": [
    {"day": 1, "date": "", "activities": [{"time": "09:00", "type": "景点", "description": "故宫", "coordinates": {"lat": 39.916, "lng": 116.397}}, {"time": "14:00", "type": "景点", "description": "景山", "coordinates": {"lat": 39.925, "lng": 116.396}}]},
    {"day": 2, "date": "", "activities": [{"time": "08:00", "type": "景点", "description": "长城"}]},
    {"day": 3, "date": "", "activities": [{"time": "10:00", "type": "购物", "description": "南锣鼓巷", "budget": "200元"}]}
  ],
  "tips": ["带好身份证"]
}`

type fixture struct {
	h        *Handler
	store    *db.SQLStore
	provider *stubProvider
}

func newFixture(t *testing.T, defaults llm.Settings, cache rdx.Cache) *fixture {
	t.Helper()
	store, err := db.OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := &stubProvider{text: threeDayAnswer}
	settings := sysconfig.NewService(store, vault.NewEphemeral(), sysconfig.Defaults{LLM: defaults, MapAPIKey: "map-key"})
	prefService := prefs.NewService(store)
	h := NewHandler(Deps{
		Generator: NewGenerator(llm.NewGateway(provider, cache, 30*time.Minute), settings, prefService),
		Plans:     plans.NewService(store),
		Expenses:  expenses.NewService(store, store),
		Prefs:     prefService,
		Settings:  settings,
		Export:    ExportOptions{PublicBaseURL: "https://plan.example.com", DefaultTimezone: "Asia/Shanghai"},
		Public:    PublicConfig{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "anon"},
	})
	return &fixture{h: h, store: store, provider: provider}
}

func configured(t *testing.T) *fixture {
	return newFixture(t, llm.Settings{APIKey: "sk-test", BaseURL: "http://llm.invalid/v4", Model: llm.DefaultModel}, nil)
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Warnings []string        `json:"warnings"`
}

func call(t *testing.T, handle httprouter.Handle, method, target, user string, body any, ps ...httprouter.Param) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, rdr)
	if user != "" {
		r = r.WithContext(context.WithValue(r.Context(), globals.UserIDKey, user))
	}
	rec := httptest.NewRecorder()
	handle(rec, r, httprouter.Params(ps))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func id(v string) httprouter.Param { return httprouter.Param{Key: "id", Value: v} }

func TestGenerateFreeTextAndSave(t *testing.T) {
	f := configured(t)

	rec, env := call(t, f.h.Generate, http.MethodPost, "/api/itineraries/generate", "u1",
		map[string]any{"freeText": "我想去北京，3天，预算5000元", "save": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, env.Success)
	assert.Empty(t, env.Warnings)

	var data struct {
		Itinerary models.Itinerary `json:"itinerary"`
		Map       struct {
			Markers []any `json:"markers"`
			Routes  []any `json:"routes"`
		} `json:"map"`
		Fallback bool             `json:"fallback"`
		Saved    models.SavedPlan `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Fallback)
	require.Len(t, data.Itinerary.DailyPlans, 3)
	for _, d := range data.Itinerary.DailyPlans {
		assert.NotEmpty(t, d.Activities)
	}
	assert.Len(t, data.Map.Markers, 2)
	assert.Len(t, data.Map.Routes, 1)
	require.NotEmpty(t, data.Saved.ID)

	row, err := f.store.GetPlan(context.Background(), data.Saved.ID, "u1")
	require.NoError(t, err)
	var days []models.DayPlan
	require.NoError(t, json.Unmarshal([]byte(row.DailyPlans), &days))
	assert.Len(t, days, 3)

	require.Equal(t, 1, f.provider.calls())
	assert.Contains(t, f.provider.prompts[0], "我想去北京，3天，预算5000元")
}

func TestGenerateUnparsableAnswerFallsBack(t *testing.T) {
	f := configured(t)
	f.provider.text = "sorry, I cannot help"

	rec, env := call(t, f.h.Generate, http.MethodPost, "/", "u1", map[string]any{"freeText": "去杭州玩两天"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	assert.Len(t, env.Warnings, 1)

	var data struct {
		Itinerary models.Itinerary `json:"itinerary"`
		Fallback  bool             `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Fallback)
	require.Len(t, data.Itinerary.DailyPlans, 1)
	assert.Len(t, data.Itinerary.DailyPlans[0].Activities, 1)
}

func TestRegenerateAfterFallbackReachesModel(t *testing.T) {
	f := newFixture(t, llm.Settings{APIKey: "sk-test", BaseURL: "http://llm.invalid/v4"}, rdx.NewLocalCache())
	f.provider.answer("sorry, I cannot help")
	req := map[string]any{"freeText": "我想去北京，3天，预算5000元"}

	fallback := func(env envelope) bool {
		var data struct {
			Fallback bool `json:"fallback"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		return data.Fallback
	}

	_, env := call(t, f.h.Generate, http.MethodPost, "/", "u1", req)
	assert.True(t, fallback(env))

	f.provider.answer(threeDayAnswer)
	_, env = call(t, f.h.Generate, http.MethodPost, "/", "u1", req)
	assert.False(t, fallback(env))
	assert.Equal(t, 2, f.provider.calls())

	// a readable answer is cached
	_, env = call(t, f.h.Generate, http.MethodPost, "/", "u1", req)
	assert.False(t, fallback(env))
	assert.Equal(t, 2, f.provider.calls())

	req["regenerate"] = true
	_, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1", req)
	assert.Equal(t, 3, f.provider.calls())
}

func TestGenerateValidationCostsNoCall(t *testing.T) {
	f := configured(t)

	rec, env := call(t, f.h.Generate, http.MethodPost, "/", "u1", map[string]any{"freeText": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "请输入您的旅行需求", env.Error)

	rec, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1",
		map[string]any{"destination": "成都", "startDate": "2025-05-03", "endDate": "2025-05-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, f.provider.calls())
}

func TestGenerateWithoutCredentials(t *testing.T) {
	f := newFixture(t, llm.Settings{Model: llm.DefaultModel}, nil)

	rec, env := call(t, f.h.Generate, http.MethodPost, "/", "u1", map[string]any{"freeText": "去西安"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, env.Error, "系统设置")
	assert.Zero(t, f.provider.calls())

	// per-user overrides take precedence over the empty defaults
	rec, _ = call(t, f.h.SaveSystemSettings, http.MethodPut, "/", "u1",
		models.SystemConfig{LLMAPIKey: "sk-user-0001", LLMAPIBaseURL: "https://open.bigmodel.cn/api/paas/v4/"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1", map[string]any{"freeText": "去西安"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.provider.calls())
}

func TestGenerateUpstreamFailure(t *testing.T) {
	f := configured(t)
	f.provider.err = &llm.UpstreamError{Status: http.StatusTooManyRequests, Message: "rate limited"}

	rec, env := call(t, f.h.Generate, http.MethodPost, "/", "u1", map[string]any{"freeText": "去西安"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, env.Error, "生成旅行计划失败")
}

func TestStructuredRequestInheritsPreferences(t *testing.T) {
	f := configured(t)
	rec, _ := call(t, f.h.AddPreference, http.MethodPost, "/", "u1", map[string]string{"preference": "美食"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1",
		map[string]any{"destination": "成都", "startDate": "2025-05-01", "endDate": "2025-05-03", "budget": 3000, "peopleCount": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, f.provider.calls())
	assert.Contains(t, f.provider.prompts[0], "旅行偏好：美食")

	rec, _ = call(t, f.h.Generate, http.MethodPost, "/", "u1",
		map[string]any{"destination": "成都", "startDate": "2025-05-01", "endDate": "2025-05-03", "preferences": []string{"徒步"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.provider.prompts[1], "旅行偏好：徒步")
}

func savePlan(t *testing.T, f *fixture, user, name string) models.SavedPlan {
	t.Helper()
	var it models.Itinerary
	require.NoError(t, json.Unmarshal([]byte(threeDayAnswer), &it))
	rec, env := call(t, f.h.CreatePlan, http.MethodPost, "/api/plans", user, map[string]any{
		"itinerary":       it,
		"originalRequest": models.TripRequest{Destination: "北京", StartDate: "2025-03-09", EndDate: "2025-03-11"},
		"planName":        name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p models.SavedPlan
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestPlanLifecycle(t *testing.T) {
	f := configured(t)
	p := savePlan(t, f, "u1", "Tokyo")
	assert.Equal(t, "Tokyo", p.PlanName)
	assert.Equal(t, "Tokyo(1)", savePlan(t, f, "u1", "Tokyo").PlanName)

	rec, env := call(t, f.h.ListPlans, http.MethodGet, "/api/plans", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	days := []models.DayPlan{{Day: 1, Activities: []models.Activity{
		{Time: "14:00", Description: "下午"},
		{Time: "09:00", Description: "上午"},
	}}}
	rec, env = call(t, f.h.UpdatePlan, http.MethodPut, "/", "u1", models.PlanChanges{DailyPlans: &days}, id(p.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		DailyPlans []models.DayPlan `json:"daily_plans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "09:00", updated.DailyPlans[0].Activities[0].Time)
	assert.Equal(t, "14:00", updated.DailyPlans[0].Activities[1].Time)

	rec, _ = call(t, f.h.GetPlan, http.MethodGet, "/", "u2", nil, id(p.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, f.h.DeletePlan, http.MethodDelete, "/", "u1", nil, id(p.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = call(t, f.h.GetPlan, http.MethodGet, "/", "u1", nil, id(p.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "旅行计划不存在", env.Error)
}

func TestPlanMapAndExports(t *testing.T) {
	f := configured(t)
	p := savePlan(t, f, "u1", "北京")

	rec, env := call(t, f.h.PlanMap, http.MethodGet, "/", "u1", nil, id(p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"routes":[{"day":1`)

	rec, _ = call(t, f.h.ExportPDF, http.MethodGet, "/", "u1", nil, id(p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec, _ = call(t, f.h.ExportICS, http.MethodGet, "/", "u1", nil, id(p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "DTSTART:20250309T010000Z")

	rec, _ = call(t, f.h.ExportICS, http.MethodGet, "/?start=03/09/2025", "u1", nil, id(p.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpenses(t *testing.T) {
	f := configured(t)
	p := savePlan(t, f, "u1", "北京")

	rec, _ := call(t, f.h.AddExpense, http.MethodPost, "/", "u1", map[string]any{"item": "午餐", "amount": "45.5"}, id(p.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = call(t, f.h.AddExpense, http.MethodPost, "/", "u1", map[string]any{"item": "门票", "amount": 60}, id(p.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := call(t, f.h.AddExpense, http.MethodPost, "/", "u1", map[string]any{"item": "门票", "amount": 0}, id(p.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "请输入有效的费用金额", env.Error)

	rec, _ = call(t, f.h.AddExpense, http.MethodPost, "/", "u2", map[string]any{"item": "x", "amount": 1}, id(p.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = call(t, f.h.ListExpenses, http.MethodGet, "/", "u1", nil, id(p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var sum models.ExpenseSummary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Len(t, sum.Expenses, 2)
	assert.Equal(t, "105.5", sum.Total.String())

	rec, _ = call(t, f.h.DeleteExpense, http.MethodDelete, "/", "u1", nil, id(sum.Expenses[0].ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, f.h.DeleteExpense, http.MethodDelete, "/", "u1", nil, id(sum.Expenses[0].ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemSettingsAreMasked(t *testing.T) {
	f := configured(t)
	rec, _ := call(t, f.h.SaveSystemSettings, http.MethodPut, "/", "u1", models.SystemConfig{LLMAPIKey: "sk-abcdef1234", MapAPIKey: "baidu-9876"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := call(t, f.h.GetSystemSettings, http.MethodGet, "/", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg models.SystemConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "*********1234", cfg.LLMAPIKey)
	assert.Equal(t, "******9876", cfg.MapAPIKey)

	rec, _ = call(t, f.h.SaveSystemSettings, http.MethodPut, "/", "u1", models.SystemConfig{LLMAPIBaseURL: "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, f.h.DeleteSystemSettings, http.MethodDelete, "/", "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicConfig(t *testing.T) {
	f := configured(t)
	rec, env := call(t, f.h.GetPublicConfig, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"supabaseUrl":"https://x.supabase.co","supabaseAnonKey":"anon"}`, string(env.Data))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.Invalid("x", "y"), http.StatusBadRequest},
		{&plans.NameConflictError{Name: "a"}, http.StatusConflict},
		{fmt.Errorf("wrap: %w", db.ErrNotFound), http.StatusNotFound},
		{&llm.ConfigError{Missing: []string{"LLM_API_KEY"}}, http.StatusPreconditionFailed},
		{&llm.UpstreamError{Status: 500}, http.StatusBadGateway},
		{&llm.SchemaError{Reason: "empty"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}
