package itinerary

import (
	"net/http"

	"wanderplan/models"
	"wanderplan/sysconfig"
	"wanderplan/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

// GET /api/plans/:id/expenses
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sum, err := h.expenses.List(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r))
	if err != nil {
		respondErr(w, "获取费用记录", err)
		return
	}
	utils.RespondOK(w, sum)
}

type addExpenseRequest struct {
	Item   string          `json:"item"`
	Amount decimal.Decimal `json:"amount"`
}

// POST /api/plans/:id/expenses
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body addExpenseRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "请输入有效的费用金额")
		return
	}
	rec, err := h.expenses.Add(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"), body.Item, body.Amount)
	if err != nil {
		respondErr(w, "添加费用记录", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.Envelope{Success: true, Data: rec})
}

// DELETE /api/expenses/:id
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.expenses.Delete(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r)); err != nil {
		respondErr(w, "删除费用记录", err)
		return
	}
	utils.RespondOK(w, true)
}

// GET /api/preferences
func (h *Handler) ListPreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.prefs.List(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		respondErr(w, "获取偏好", err)
		return
	}
	utils.RespondOK(w, list)
}

// POST /api/preferences
func (h *Handler) AddPreference(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Preference string `json:"preference"`
	}
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.prefs.Add(r.Context(), utils.GetUserIDFromRequest(r), body.Preference)
	if err != nil {
		respondErr(w, "添加偏好", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.Envelope{Success: true, Data: p})
}

// DELETE /api/preferences/:id
func (h *Handler) DeletePreference(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.prefs.Delete(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r)); err != nil {
		respondErr(w, "删除偏好", err)
		return
	}
	utils.RespondOK(w, true)
}

// GET /api/settings/system returns the stored overrides with keys masked.
func (h *Handler) GetSystemSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cfg, err := h.settings.Get(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		respondErr(w, "获取系统设置", err)
		return
	}
	utils.RespondOK(w, sysconfig.Masked(cfg))
}

// PUT /api/settings/system
func (h *Handler) SaveSystemSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var cfg models.SystemConfig
	if err := utils.DecodeJSON(w, r, &cfg); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.Save(r.Context(), utils.GetUserIDFromRequest(r), cfg); err != nil {
		respondErr(w, "保存系统设置", err)
		return
	}
	utils.RespondOK(w, sysconfig.Masked(cfg))
}

// DELETE /api/settings/system
func (h *Handler) DeleteSystemSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.settings.Delete(r.Context(), utils.GetUserIDFromRequest(r)); err != nil {
		respondErr(w, "清除系统设置", err)
		return
	}
	utils.RespondOK(w, true)
}
