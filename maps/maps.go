package maps

import (
	"context"
	"errors"
	"log"
	"net/http"

	"wanderplan/models"
	"wanderplan/utils"

	"github.com/julienschmidt/httprouter"
)

// KeyResolver picks the map key for a user, falling back to the server key.
type KeyResolver interface {
	ResolveMapKey(ctx context.Context, userID string) (string, error)
}

type Handler struct {
	loader *Loader
	keys   KeyResolver
}

func NewHandler(loader *Loader, keys KeyResolver) *Handler {
	return &Handler{loader: loader, keys: keys}
}

// ProjectItinerary handles POST /api/maps/project.
func (h *Handler) ProjectItinerary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var it models.Itinerary
	if err := utils.DecodeJSON(w, r, &it); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondOK(w, Project(it))
}

type pick struct {
	Day      int             `json:"day"`
	Activity models.Activity `json:"activity"`
}

// PointToPoint handles POST /api/maps/route with {"selected":[{day,activity},...]}.
// Repeated picks and picks beyond the second are ignored.
func (h *Handler) PointToPoint(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Selected []pick `json:"selected"`
	}
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sel Selection
	var warnings []string
	for _, p := range body.Selected {
		added, err := sel.Add(p.Day, p.Activity)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !added {
			if sel.Len() < MaxSelected {
				continue // picked twice
			}
			warnings = append(warnings, "最多只能选择两个活动")
			break
		}
	}
	leg, err := sel.Route()
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondOK(w, leg, warnings...)
}

type sdkStatus struct {
	Ready     bool   `json:"ready"`
	ScriptURL string `json:"scriptUrl,omitempty"`
}

// SDK handles GET /api/maps/sdk.
func (h *Handler) SDK(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	key, err := h.keys.ResolveMapKey(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("map key lookup: %v", err)
	}
	script, err := h.loader.Load(r.Context(), key)
	switch {
	case errors.Is(err, ErrMissingKey):
		utils.RespondWithError(w, http.StatusPreconditionFailed, err.Error())
	case err != nil:
		utils.RespondWithJSON(w, http.StatusBadGateway, utils.Envelope{Data: sdkStatus{}, Error: "地图加载失败，请稍后重试"})
	default:
		utils.RespondOK(w, sdkStatus{Ready: true, ScriptURL: script})
	}
}
