// Package prefs keeps the travel preferences a user has saved on their
// profile ("美食", "自然风光", ...).
package prefs

import (
	"context"
	"slices"
	"strings"
	"time"

	"wanderplan/db"
	"wanderplan/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Service struct {
	store db.PreferenceStore
	now   func() time.Time
}

func NewService(store db.PreferenceStore) *Service {
	return &Service{store: store, now: time.Now}
}

// List is newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.UserPreference, error) {
	if userID == "" {
		return nil, models.Invalid("userId", "请先登录")
	}
	rows, err := s.store.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r db.PreferenceRow, _ int) models.UserPreference {
		return models.UserPreference{ID: r.ID, UserID: r.UserID, Preference: r.Preference, CreatedAt: r.CreatedAt}
	}), nil
}

func (s *Service) Add(ctx context.Context, userID, preference string) (models.UserPreference, error) {
	preference = strings.TrimSpace(preference)
	if userID == "" {
		return models.UserPreference{}, models.Invalid("userId", "请先登录")
	}
	if preference == "" {
		return models.UserPreference{}, models.Invalid("preference", "请输入偏好内容")
	}
	p := models.UserPreference{
		ID:         uuid.NewString(),
		UserID:     userID,
		Preference: preference,
		CreatedAt:  s.now().UTC(),
	}
	err := s.store.InsertPreference(ctx, db.PreferenceRow{
		ID:         p.ID,
		UserID:     p.UserID,
		Preference: p.Preference,
		CreatedAt:  p.CreatedAt,
	})
	if err != nil {
		return models.UserPreference{}, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if userID == "" {
		return models.Invalid("userId", "请先登录")
	}
	return s.store.DeletePreference(ctx, id, userID)
}

// Labels returns the distinct preference texts for use in a trip request,
// most recently added last.
func (s *Service) Labels(ctx context.Context, userID string) ([]string, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	labels := lo.Uniq(lo.Map(list, func(p models.UserPreference, _ int) string { return p.Preference }))
	slices.Reverse(labels)
	return labels, nil
}
