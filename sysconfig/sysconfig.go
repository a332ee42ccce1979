// Package sysconfig stores per-user overrides of the LLM and map
// credentials and resolves the effective settings for a request.
package sysconfig

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"wanderplan/db"
	"wanderplan/llm"
	"wanderplan/models"
	"wanderplan/vault"
)

// Defaults come from the environment.
type Defaults struct {
	LLM       llm.Settings
	MapAPIKey string
}

type Service struct {
	store    db.ConfigStore
	vault    *vault.Vault
	defaults Defaults
	now      func() time.Time
}

func NewService(store db.ConfigStore, v *vault.Vault, defaults Defaults) *Service {
	return &Service{store: store, vault: v, defaults: defaults, now: time.Now}
}

func (s *Service) Save(ctx context.Context, userID string, cfg models.SystemConfig) error {
	if userID == "" {
		return models.Invalid("userId", "请先登录")
	}
	cfg.LLMAPIKey = strings.TrimSpace(cfg.LLMAPIKey)
	cfg.LLMAPIBaseURL = strings.TrimSpace(cfg.LLMAPIBaseURL)
	cfg.MapAPIKey = strings.TrimSpace(cfg.MapAPIKey)
	if cfg.LLMAPIBaseURL != "" {
		u, err := url.Parse(cfg.LLMAPIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return models.Invalid("llmApiBaseUrl", "API基础URL格式不正确")
		}
	}

	row := db.ConfigRow{UserID: userID, UpdatedAt: s.now().UTC()}
	var err error
	if row.LLMAPIKey, err = s.vault.Seal(cfg.LLMAPIKey, userID); err != nil {
		return err
	}
	if row.LLMAPIBaseURL, err = s.vault.Seal(cfg.LLMAPIBaseURL, userID); err != nil {
		return err
	}
	if row.MapAPIKey, err = s.vault.Seal(cfg.MapAPIKey, userID); err != nil {
		return err
	}
	return s.store.UpsertSystemConfig(ctx, row)
}

// Get returns the decrypted overrides. A user without overrides gets a
// zero config and no error.
func (s *Service) Get(ctx context.Context, userID string) (models.SystemConfig, error) {
	if userID == "" {
		return models.SystemConfig{}, models.Invalid("userId", "请先登录")
	}
	row, err := s.store.GetSystemConfig(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return models.SystemConfig{}, nil
	}
	if err != nil {
		return models.SystemConfig{}, err
	}

	var cfg models.SystemConfig
	open := func(field, sealed string) string {
		plain, err := s.vault.Open(sealed, userID)
		if err != nil {
			log.Printf("sysconfig: cannot decrypt %s for user %s, ignoring it: %v", field, userID, err)
			return ""
		}
		return plain
	}
	cfg.LLMAPIKey = open("llm_api_key", row.LLMAPIKey)
	cfg.LLMAPIBaseURL = open("llm_api_base_url", row.LLMAPIBaseURL)
	cfg.MapAPIKey = open("baidu_map_api_key", row.MapAPIKey)
	return cfg, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return models.Invalid("userId", "请先登录")
	}
	return s.store.DeleteSystemConfig(ctx, userID)
}

// ResolveLLM overlays the user's non-empty overrides on the defaults.
func (s *Service) ResolveLLM(ctx context.Context, userID string) (llm.Settings, error) {
	settings := s.defaults.LLM
	if userID == "" {
		return settings, nil
	}
	cfg, err := s.Get(ctx, userID)
	if err != nil {
		return settings, err
	}
	if cfg.LLMAPIKey != "" {
		settings.APIKey = cfg.LLMAPIKey
	}
	if cfg.LLMAPIBaseURL != "" {
		settings.BaseURL = cfg.LLMAPIBaseURL
	}
	return settings, nil
}

func (s *Service) ResolveMapKey(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return s.defaults.MapAPIKey, nil
	}
	cfg, err := s.Get(ctx, userID)
	if err != nil {
		return s.defaults.MapAPIKey, err
	}
	if cfg.MapAPIKey != "" {
		return cfg.MapAPIKey, nil
	}
	return s.defaults.MapAPIKey, nil
}

// Masked hides all but the last four characters of each key so the
// settings page can show what is stored.
func Masked(cfg models.SystemConfig) models.SystemConfig {
	cfg.LLMAPIKey = mask(cfg.LLMAPIKey)
	cfg.MapAPIKey = mask(cfg.MapAPIKey)
	return cfg
}

func mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
