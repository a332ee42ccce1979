// Package itinerary holds the HTTP handlers behind the planner pages:
// generate, my plans, expenses, preferences and settings.
package itinerary

import (
	"errors"
	"log"
	"net/http"

	"wanderplan/db"
	"wanderplan/expenses"
	"wanderplan/llm"
	"wanderplan/models"
	"wanderplan/plans"
	"wanderplan/prefs"
	"wanderplan/sysconfig"
	"wanderplan/utils"

	"github.com/julienschmidt/httprouter"
)

// ExportOptions configure the PDF and calendar downloads.
type ExportOptions struct {
	FontPath        string
	PublicBaseURL   string
	DefaultTimezone string
}

// PublicConfig is what the browser needs to talk to Supabase auth.
type PublicConfig struct {
	SupabaseURL     string `json:"supabaseUrl"`
	SupabaseAnonKey string `json:"supabaseAnonKey"`
}

type Deps struct {
	Generator *Generator
	Plans     *plans.Service
	Expenses  *expenses.Service
	Prefs     *prefs.Service
	Settings  *sysconfig.Service
	Export    ExportOptions
	Public    PublicConfig
}

type Handler struct {
	gen      *Generator
	plans    *plans.Service
	expenses *expenses.Service
	prefs    *prefs.Service
	settings *sysconfig.Service
	export   ExportOptions
	public   PublicConfig
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		gen:      d.Generator,
		plans:    d.Plans,
		expenses: d.Expenses,
		prefs:    d.Prefs,
		settings: d.Settings,
		export:   d.Export,
		public:   d.Public,
	}
}

// GET /api/config/public
func (h *Handler) GetPublicConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondOK(w, h.public)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		verr     *models.ValidationError
		conflict *plans.NameConflictError
		cfgErr   *llm.ConfigError
		upErr    *llm.UpstreamError
		schema   *llm.SchemaError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &cfgErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &upErr), errors.As(err, &schema):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// messageFor renders err for display after action failed.
func messageFor(action string, err error) string {
	var cfgErr *llm.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return "请先在系统设置中配置大模型 API Key 和基础URL"
	case errors.Is(err, db.ErrNotFound):
		return action + "失败: 记录不存在"
	}
	return plans.Message(action, err)
}

func respondErr(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s: %v", action, err)
	}
	utils.RespondWithError(w, status, messageFor(action, err))
}

func respondResult[T any](w http.ResponseWriter, res plans.Result[T], warnings ...string) {
	if !res.Success {
		status := statusFor(res.Err)
		if status >= http.StatusInternalServerError {
			log.Printf("plans: %v", res.Err)
		}
		utils.RespondWithError(w, status, res.Error)
		return
	}
	utils.RespondOK(w, res.Data, warnings...)
}
