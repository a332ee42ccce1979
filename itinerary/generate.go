package itinerary

import (
	"context"
	"log"

	"wanderplan/llm"
	"wanderplan/models"
	"wanderplan/normalize"
	"wanderplan/prompt"
)

// ModelCaller is satisfied by *llm.Gateway.
type ModelCaller interface {
	CallModel(ctx context.Context, s llm.Settings, userPrompt string, opts ...llm.CallOption) (string, error)
}

// SettingsResolver is satisfied by *sysconfig.Service.
type SettingsResolver interface {
	ResolveLLM(ctx context.Context, userID string) (llm.Settings, error)
}

// PreferenceSource is satisfied by *prefs.Service.
type PreferenceSource interface {
	Labels(ctx context.Context, userID string) ([]string, error)
}

// Generator runs one generate action: build the prompt, call the model,
// normalize the answer. The steps run in order on the caller's goroutine.
type Generator struct {
	model    ModelCaller
	settings SettingsResolver
	prefs    PreferenceSource
}

func NewGenerator(model ModelCaller, settings SettingsResolver, prefs PreferenceSource) *Generator {
	return &Generator{model: model, settings: settings, prefs: prefs}
}

type Generated struct {
	Itinerary models.Itinerary
	Request   models.TripRequest
	Outcome   normalize.Outcome
	Warnings  []string
}

// Generate returns an itinerary for req. Validation and configuration
// problems fail before any network call. An unreadable answer is not an
// error: the fallback itinerary comes back with a warning, and it is never
// cached so asking again reaches the model. regenerate skips cached answers.
func (g *Generator) Generate(ctx context.Context, userID string, req models.TripRequest, regenerate bool) (Generated, error) {
	req = g.inheritPreferences(ctx, userID, req)

	text, err := prompt.Build(req)
	if err != nil {
		return Generated{}, err
	}

	settings, err := g.settings.ResolveLLM(ctx, userID)
	if err != nil {
		log.Printf("⚠️ llm settings for %s: %v; using server defaults", userID, err)
	}

	var (
		it      models.Itinerary
		outcome normalize.Outcome
		parsed  bool
	)
	opts := []llm.CallOption{llm.CacheIf(func(raw string) bool {
		it, outcome = normalize.Parse(raw)
		parsed = true
		return !outcome.Degraded()
	})}
	if regenerate {
		opts = append(opts, llm.Refresh())
	}
	raw, err := g.model.CallModel(ctx, settings, text, opts...)
	if err != nil {
		return Generated{}, err
	}
	if !parsed {
		it, outcome = normalize.Parse(raw)
	}
	out := Generated{Itinerary: it, Request: req, Outcome: outcome}
	if outcome.Degraded() {
		log.Printf("⚠️ model answer for %s was unreadable; showing fallback plan", userID)
		out.Warnings = append(out.Warnings, "大模型返回的内容无法解析，已显示默认行程，请重新生成")
	}
	if w := it.DayCountWarning(); w != "" && !outcome.Degraded() {
		out.Warnings = append(out.Warnings, w)
	}
	return out, nil
}

// inheritPreferences fills an empty preference list of a structured request
// from the user's saved preferences.
func (g *Generator) inheritPreferences(ctx context.Context, userID string, req models.TripRequest) models.TripRequest {
	if g.prefs == nil || userID == "" || !req.Structured() || len(req.Preferences) > 0 {
		return req
	}
	labels, err := g.prefs.Labels(ctx, userID)
	if err != nil {
		log.Printf("⚠️ preferences for %s: %v", userID, err)
		return req
	}
	req.Preferences = labels
	return req
}
