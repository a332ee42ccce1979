// Package llm sends a prompt to an OpenAI-compatible chat completion
// endpoint and returns the raw text of the first choice.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"wanderplan/prompt"
	"wanderplan/rdx"
)

const (
	DefaultModel       = "glm-4"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
)

// Settings are resolved per request: user overrides first, then the
// environment. Temperature is sent as given, zero included; its default is
// applied when the environment is read.
type Settings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Validate reports missing credentials as a *ConfigError.
func (s Settings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(s.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (s Settings) withDefaults() Settings {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// NormalizeBaseURL makes sure the base URL ends with exactly one slash so
// that "chat/completions" can be appended.
func NormalizeBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/"
}

// Provider performs one chat completion.
type Provider interface {
	Complete(ctx context.Context, s Settings, system, user string) (string, error)
}

type Gateway struct {
	provider Provider
	cache    rdx.Cache
	ttl      time.Duration
}

// NewGateway wraps provider. A nil cache or a zero ttl disables caching.
func NewGateway(provider Provider, cache rdx.Cache, ttl time.Duration) *Gateway {
	return &Gateway{provider: provider, cache: cache, ttl: ttl}
}

// CallOption adjusts a single CallModel call.
type CallOption func(*callOptions)

type callOptions struct {
	refresh bool
	accept  func(text string) bool
}

// Refresh skips the cache lookup. A fresh answer is still cached.
func Refresh() CallOption {
	return func(o *callOptions) { o.refresh = true }
}

// CacheIf caches an answer only when accept returns true for it.
func CacheIf(accept func(text string) bool) CallOption {
	return func(o *callOptions) { o.accept = accept }
}

// CallModel sends one request and returns the model's text untouched. There
// is no retry. Cancelling ctx aborts the upstream call.
func (g *Gateway) CallModel(ctx context.Context, s Settings, userPrompt string, opts ...CallOption) (string, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if _, mock := g.provider.(*MockProvider); !mock {
		if err := s.Validate(); err != nil {
			return "", err
		}
	}
	s = s.withDefaults()

	key := cacheKey(s, userPrompt)
	if g.cacheEnabled() && !o.refresh {
		if val, ok, err := g.cache.Get(ctx, key); err != nil {
			log.Printf("llm cache read failed: %v", err)
		} else if ok {
			return string(val), nil
		}
	}

	start := time.Now()
	text, err := g.provider.Complete(ctx, s, prompt.SystemMessage, userPrompt)
	if err != nil {
		log.Printf("llm call to %s (%s) failed after %s: %v", s.BaseURL, s.Model, time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	log.Printf("llm call to %s (%s) took %s", s.BaseURL, s.Model, time.Since(start).Round(time.Millisecond))

	if g.cacheEnabled() && (o.accept == nil || o.accept(text)) {
		if err := g.cache.Set(ctx, key, []byte(text), g.ttl); err != nil {
			log.Printf("llm cache write failed: %v", err)
		}
	}
	return text, nil
}

func (g *Gateway) cacheEnabled() bool {
	return g.cache != nil && g.ttl > 0
}

// cacheKey never contains the API key itself.
func cacheKey(s Settings, userPrompt string) string {
	fp := sha256.Sum256([]byte(s.APIKey))
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%x\x00%g\x00%d\x00%s",
		NormalizeBaseURL(s.BaseURL), s.Model, fp[:8], s.Temperature, s.MaxTokens, userPrompt)
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}
