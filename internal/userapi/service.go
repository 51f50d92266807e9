// Package userapi manages per-user custom API configurations: records a
// user creates for a self-supplied API key, optionally carrying their own
// call limits and creator-set overrides.
package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// Service provides CRUD over a user's API configs
type Service struct {
	store store.Store
}

// NewService creates a user API config service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// List returns all of a user's API configs
func (s *Service) List(ctx context.Context, userID string) ([]models.UserApiConfig, error) {
	docs, err := s.store.ListUser(ctx, userID, store.CollectionUserApiConfigs)
	if err != nil {
		return nil, err
	}

	configs := make([]models.UserApiConfig, 0, len(docs))
	for _, raw := range docs {
		var cfg models.UserApiConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Get fetches one of a user's API configs
func (s *Service) Get(ctx context.Context, userID, apiID string) (*models.UserApiConfig, error) {
	var cfg models.UserApiConfig
	err := store.GetUserAs(ctx, s.store, userID, store.CollectionUserApiConfigs, apiID, &cfg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierrors.ErrAPIConfigNotFoundError
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Create registers a new custom API for a user. The id is generated.
// Creator override fields on the incoming config are ignored; only Update
// by a creator can set them.
func (s *Service) Create(ctx context.Context, userID string, cfg models.UserApiConfig) (*models.UserApiConfig, error) {
	if cfg.Name == "" {
		return nil, apierrors.NewValidationError(map[string]string{"name": "name must not be empty"})
	}

	cfg.ID = uuid.New().String()
	cfg.CreatorOverrideUnlimited = false
	cfg.CreatorOverrideMonthly = nil
	cfg.CreatorOverrideDaily = nil
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.LastUpdatedAt = now

	if err := s.store.SetUser(ctx, userID, store.CollectionUserApiConfigs, cfg.ID, cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Update applies a partial update to a user's API config. The owner (or a
// creator acting on their behalf) may change the name, base URL and their
// own limits; the creator override fields require the creator role.
func (s *Service) Update(ctx context.Context, userID, apiID string, update models.UserApiConfigUpdate, actor *models.UserProfile) (*models.UserApiConfig, error) {
	touchesOverrides := update.CreatorOverrideUnlimited != nil ||
		update.CreatorOverrideMonthly != nil ||
		update.CreatorOverrideDaily != nil
	if touchesOverrides && !actor.IsCreator() {
		return nil, apierrors.NewForbiddenError("Creator role required to set override limits")
	}

	cfg, err := s.Get(ctx, userID, apiID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		cfg.Name = *update.Name
	}
	if update.BaseURL != nil {
		cfg.BaseURL = *update.BaseURL
	}
	if update.UserDefinedLimitMonthly != nil {
		cfg.UserDefinedLimitMonthly = update.UserDefinedLimitMonthly
	}
	if update.UserDefinedLimitDaily != nil {
		cfg.UserDefinedLimitDaily = update.UserDefinedLimitDaily
	}
	if update.CreatorOverrideUnlimited != nil {
		cfg.CreatorOverrideUnlimited = *update.CreatorOverrideUnlimited
	}
	if update.CreatorOverrideMonthly != nil {
		cfg.CreatorOverrideMonthly = update.CreatorOverrideMonthly
	}
	if update.CreatorOverrideDaily != nil {
		cfg.CreatorOverrideDaily = update.CreatorOverrideDaily
	}
	cfg.LastUpdatedAt = time.Now().UTC()

	if err := s.store.SetUser(ctx, userID, store.CollectionUserApiConfigs, apiID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetOverrides upserts creator override limits on a user's config for an
// API. The document is created when the user has none under that id, so
// overrides can target platform APIs the user never configured themselves.
func (s *Service) SetOverrides(ctx context.Context, userID, apiID string, update models.UserApiConfigUpdate, actor *models.UserProfile) (*models.UserApiConfig, error) {
	if !actor.IsCreator() {
		return nil, apierrors.NewForbiddenError("Creator role required to set override limits")
	}

	cfg, err := s.Get(ctx, userID, apiID)
	if err != nil {
		if !errors.Is(err, apierrors.ErrAPIConfigNotFoundError) {
			return nil, err
		}
		cfg = &models.UserApiConfig{
			ID:        apiID,
			Name:      apiID,
			CreatedAt: time.Now().UTC(),
		}
	}

	if update.CreatorOverrideUnlimited != nil {
		cfg.CreatorOverrideUnlimited = *update.CreatorOverrideUnlimited
	}
	if update.CreatorOverrideMonthly != nil {
		cfg.CreatorOverrideMonthly = update.CreatorOverrideMonthly
	}
	if update.CreatorOverrideDaily != nil {
		cfg.CreatorOverrideDaily = update.CreatorOverrideDaily
	}
	cfg.LastUpdatedAt = time.Now().UTC()

	if err := s.store.SetUser(ctx, userID, store.CollectionUserApiConfigs, apiID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Delete removes a user's API config
func (s *Service) Delete(ctx context.Context, userID, apiID string) error {
	if _, err := s.Get(ctx, userID, apiID); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, userID, store.CollectionUserApiConfigs, apiID)
}
