package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "STORE_DRIVER", "DEFAULT_TIMEZONE", "GENERATE_RATE_PER_MIN", "LLM_CACHE_TTL"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.Port)
	assert.Equal(t, "glm-4", c.LLM.Model)
	assert.Equal(t, 0.7, c.LLM.Temperature)
	assert.Equal(t, 4000, c.LLM.MaxTokens)
	assert.Equal(t, "sqlite", c.StoreDriver)
	assert.Equal(t, "Asia/Shanghai", c.DefaultTimezone)
	assert.Equal(t, 5, c.GenerateRatePerMin)
	assert.Equal(t, 30*time.Minute, c.CacheTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_MAX_TOKENS", "oops")
	t.Setenv("LLM_MOCK", "true")
	t.Setenv("LLM_CACHE_TTL", "10m")
	t.Setenv("PUBLIC_BASE_URL", "https://plan.example.com/")

	c := FromEnv()
	assert.Equal(t, ":9000", c.Port)
	assert.Equal(t, 0.2, c.LLM.Temperature)
	assert.Equal(t, 4000, c.LLM.MaxTokens)
	assert.True(t, c.LLMMock)
	assert.Equal(t, 10*time.Minute, c.CacheTTL)
	assert.Equal(t, "https://plan.example.com", c.PublicBaseURL)
}
