package routes

import (
	"wanderplan/itinerary"
	"wanderplan/maps"
	"wanderplan/middleware"
	"wanderplan/ratelim"
	"wanderplan/speech"

	"github.com/julienschmidt/httprouter"
)

func AddPublicRoutes(router *httprouter.Router, h *itinerary.Handler) {
	router.GET("/api/config/public", h.GetPublicConfig)
}

func AddItineraryRoutes(router *httprouter.Router, h *itinerary.Handler, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/itineraries/generate", middleware.Authenticate(rateLimiter.Limit(h.Generate)))
}

func AddPlanRoutes(router *httprouter.Router, h *itinerary.Handler) {
	router.GET("/api/plans", middleware.Authenticate(h.ListPlans))
	router.POST("/api/plans", middleware.Authenticate(h.CreatePlan))
	router.GET("/api/plans/:id", middleware.Authenticate(h.GetPlan))
	router.PUT("/api/plans/:id", middleware.Authenticate(h.UpdatePlan))
	router.DELETE("/api/plans/:id", middleware.Authenticate(h.DeletePlan))
	router.GET("/api/plans/:id/map", middleware.Authenticate(h.PlanMap))
	router.GET("/api/plans/:id/export.pdf", middleware.Authenticate(h.ExportPDF))
	router.GET("/api/plans/:id/export.ics", middleware.Authenticate(h.ExportICS))
}

func AddExpenseRoutes(router *httprouter.Router, h *itinerary.Handler) {
	router.GET("/api/plans/:id/expenses", middleware.Authenticate(h.ListExpenses))
	router.POST("/api/plans/:id/expenses", middleware.Authenticate(h.AddExpense))
	router.DELETE("/api/expenses/:id", middleware.Authenticate(h.DeleteExpense))
}

func AddSettingsRoutes(router *httprouter.Router, h *itinerary.Handler) {
	router.GET("/api/preferences", middleware.Authenticate(h.ListPreferences))
	router.POST("/api/preferences", middleware.Authenticate(h.AddPreference))
	router.DELETE("/api/preferences/:id", middleware.Authenticate(h.DeletePreference))

	router.GET("/api/settings/system", middleware.Authenticate(h.GetSystemSettings))
	router.PUT("/api/settings/system", middleware.Authenticate(h.SaveSystemSettings))
	router.DELETE("/api/settings/system", middleware.Authenticate(h.DeleteSystemSettings))
}

func AddMapRoutes(router *httprouter.Router, h *maps.Handler) {
	router.POST("/api/maps/project", middleware.Authenticate(h.ProjectItinerary))
	router.POST("/api/maps/route", middleware.Authenticate(h.PointToPoint))
	router.GET("/api/maps/sdk", middleware.Authenticate(h.SDK))
}

func AddSpeechRoutes(router *httprouter.Router, relay *speech.Relay) {
	router.GET("/api/speech/ws", middleware.Authenticate(relay.Serve))
}
