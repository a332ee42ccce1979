package sysconfig

import (
	"context"
	"errors"
	"testing"

	"wanderplan/db"
	"wanderplan/llm"
	"wanderplan/models"
	"wanderplan/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *db.SQLStore) {
	t.Helper()
	store, err := db.OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	v, err := vault.New("secret")
	require.NoError(t, err)
	return NewService(store, v, Defaults{
		LLM:       llm.Settings{APIKey: "env-key", BaseURL: "https://env.example/v4", Model: "glm-4"},
		MapAPIKey: "env-map",
	}), store
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	svc, _ := newService(t)
	s, err := svc.ResolveLLM(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "env-key", s.APIKey)

	key, err := svc.ResolveMapKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "env-map", key)
}

func TestUserOverridesWin(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	require.NoError(t, svc.Save(ctx, "u1", models.SystemConfig{LLMAPIKey: " user-key ", MapAPIKey: "user-map"}))

	row, err := store.GetSystemConfig(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, row.LLMAPIKey, "user-key")
	assert.Empty(t, row.LLMAPIBaseURL)

	s, err := svc.ResolveLLM(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "user-key", s.APIKey)
	assert.Equal(t, "https://env.example/v4", s.BaseURL)
	assert.Equal(t, "glm-4", s.Model)

	key, _ := svc.ResolveMapKey(ctx, "u1")
	assert.Equal(t, "user-map", key)

	other, _ := svc.ResolveLLM(ctx, "u2")
	assert.Equal(t, "env-key", other.APIKey)

	require.NoError(t, svc.Delete(ctx, "u1"))
	s, _ = svc.ResolveLLM(ctx, "u1")
	assert.Equal(t, "env-key", s.APIKey)
}

func TestSaveRejectsBadBaseURL(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Save(context.Background(), "u1", models.SystemConfig{LLMAPIBaseURL: "not a url"})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "llmApiBaseUrl", verr.Field)
}

func TestMasked(t *testing.T) {
	m := Masked(models.SystemConfig{LLMAPIKey: "sk-abcdef1234", MapAPIKey: "abc", LLMAPIBaseURL: "https://x"})
	assert.Equal(t, "*********1234", m.LLMAPIKey)
	assert.Equal(t, "***", m.MapAPIKey)
	assert.Equal(t, "https://x", m.LLMAPIBaseURL)
}
