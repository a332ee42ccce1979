package routes

import (
	"wanderplan/itinerary"
	"wanderplan/maps"
	"wanderplan/ratelim"
	"wanderplan/speech"

	"github.com/julienschmidt/httprouter"
)

// Handlers bundles everything the API routes are served by.
type Handlers struct {
	Itinerary *itinerary.Handler
	Maps      *maps.Handler
	Speech    *speech.Relay
}

func RoutesWrapper(router *httprouter.Router, h Handlers, rateLimiter *ratelim.RateLimiter) {
	AddPublicRoutes(router, h.Itinerary)
	AddItineraryRoutes(router, h.Itinerary, rateLimiter)
	AddPlanRoutes(router, h.Itinerary)
	AddExpenseRoutes(router, h.Itinerary)
	AddSettingsRoutes(router, h.Itinerary)
	AddMapRoutes(router, h.Maps)
	AddSpeechRoutes(router, h.Speech)
}
