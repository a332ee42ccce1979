package itinerary

import (
	"bytes"
	"net/http"
	"time"

	"wanderplan/export"
	"wanderplan/maps"
	"wanderplan/models"
	"wanderplan/utils"

	"github.com/julienschmidt/httprouter"
)

type generateRequest struct {
	models.TripRequest
	Save       bool   `json:"save,omitempty"`
	PlanName   string `json:"planName,omitempty"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

type generateResponse struct {
	Itinerary models.Itinerary  `json:"itinerary"`
	Map       maps.Projection   `json:"map"`
	Shape     string            `json:"shape,omitempty"`
	Fallback  bool              `json:"fallback"`
	Saved     *models.SavedPlan `json:"saved,omitempty"`
}

// POST /api/itineraries/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body generateRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := utils.GetUserIDFromRequest(r)

	gen, err := h.gen.Generate(r.Context(), userID, body.TripRequest, body.Regenerate)
	if err != nil {
		respondErr(w, "生成旅行计划", err)
		return
	}

	resp := generateResponse{
		Itinerary: gen.Itinerary,
		Map:       maps.Project(gen.Itinerary),
		Shape:     string(gen.Outcome.Shape),
		Fallback:  gen.Outcome.Degraded(),
	}
	warnings := gen.Warnings
	if body.Save {
		res := h.plans.Save(r.Context(), userID, gen.Itinerary, gen.Request, body.PlanName)
		if res.Success {
			resp.Saved = &res.Data
		} else {
			warnings = append(warnings, res.Error)
		}
	}
	utils.RespondOK(w, resp, warnings...)
}

// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	respondResult(w, h.plans.List(r.Context(), utils.GetUserIDFromRequest(r)))
}

type createPlanRequest struct {
	Itinerary       models.Itinerary   `json:"itinerary"`
	OriginalRequest models.TripRequest `json:"originalRequest"`
	PlanName        string             `json:"planName"`
}

// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createPlanRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.plans.Save(r.Context(), utils.GetUserIDFromRequest(r), body.Itinerary, body.OriginalRequest, body.PlanName)
	var warnings []string
	if res.Success {
		if warn := body.Itinerary.DayCountWarning(); warn != "" {
			warnings = append(warnings, warn)
		}
	}
	respondResult(w, res, warnings...)
}

// GET /api/plans/:id
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	respondResult(w, h.plans.GetOne(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r)))
}

// PUT /api/plans/:id
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var changes models.PlanChanges
	if err := utils.DecodeJSON(w, r, &changes); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondResult(w, h.plans.Update(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r), changes))
}

// DELETE /api/plans/:id
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	respondResult(w, h.plans.Delete(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r)))
}

// GET /api/plans/:id/map
func (h *Handler) PlanMap(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res := h.plans.GetOne(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r))
	if !res.Success {
		respondResult(w, res)
		return
	}
	it, _ := res.Data.Itinerary()
	utils.RespondOK(w, maps.Project(it))
}

// GET /api/plans/:id/export.pdf
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res := h.plans.GetOne(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r))
	if !res.Success {
		respondResult(w, res)
		return
	}
	opts := export.PDFOptions{FontPath: h.export.FontPath}
	if h.export.PublicBaseURL != "" {
		opts.PlanURL = h.export.PublicBaseURL + "/plans/" + res.Data.ID
	}

	var buf bytes.Buffer
	if err := export.PDF(&buf, res.Data, opts); err != nil {
		respondErr(w, "导出PDF", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="plan-`+res.Data.ID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GET /api/plans/:id/export.ics?start=YYYY-MM-DD
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res := h.plans.GetOne(r.Context(), ps.ByName("id"), utils.GetUserIDFromRequest(r))
	if !res.Success {
		respondResult(w, res)
		return
	}

	var start *time.Time
	if q := r.URL.Query().Get("start"); q != "" {
		if start = utils.ParseDate(q); start == nil {
			utils.RespondWithError(w, http.StatusBadRequest, "开始日期格式应为 YYYY-MM-DD")
			return
		}
	} else if req, ok := res.Data.OriginalRequest.Value(); ok {
		start = utils.ParseDate(req.StartDate)
	}
	if start == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "请提供行程开始日期")
		return
	}

	var buf bytes.Buffer
	err := export.WriteCalendar(&buf, res.Data, export.CalendarOptions{Start: *start, DefaultTimezone: h.export.DefaultTimezone})
	if err != nil {
		respondErr(w, "导出日历", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="plan-`+res.Data.ID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
