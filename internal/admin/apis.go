package admin

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

// CreateGlobalApi registers a new platform API integration. Gated on
// creator or the can_manage_global_apis permission. The id is generated.
func (s *Service) CreateGlobalApi(ctx context.Context, cfg models.GlobalApiConfig, actor *models.UserProfile) (*models.GlobalApiConfig, error) {
	if err := requirePermission(actor, PermManageGlobalApis); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		return nil, apierrors.NewValidationError(map[string]string{"name": "name must not be empty"})
	}

	cfg.ID = uuid.New().String()
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.LastUpdatedAt = now

	if err := s.store.SetGlobal(ctx, store.CollectionGlobalApiConfigs, cfg.ID, cfg); err != nil {
		return nil, err
	}
	s.logger.Info().Str("api_id", cfg.ID).Str("name", cfg.Name).Msg("Global API registered")
	return &cfg, nil
}

// ListGlobalApis returns every registered platform API
func (s *Service) ListGlobalApis(ctx context.Context) ([]models.GlobalApiConfig, error) {
	docs, err := s.store.ListGlobal(ctx, store.CollectionGlobalApiConfigs)
	if err != nil {
		return nil, err
	}

	configs := make([]models.GlobalApiConfig, 0, len(docs))
	for id, raw := range docs {
		var cfg models.GlobalApiConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			s.logger.Warn().Err(err).Str("api_id", id).Msg("Skipping undecodable API config")
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// GetGlobalApi fetches one platform API config
func (s *Service) GetGlobalApi(ctx context.Context, apiID string) (*models.GlobalApiConfig, error) {
	var cfg models.GlobalApiConfig
	err := store.GetGlobalAs(ctx, s.store, store.CollectionGlobalApiConfigs, apiID, &cfg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierrors.ErrAPIConfigNotFoundError
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateGlobalApi applies a partial update to a platform API config
func (s *Service) UpdateGlobalApi(ctx context.Context, apiID string, update models.GlobalApiConfigUpdate, actor *models.UserProfile) (*models.GlobalApiConfig, error) {
	if err := requirePermission(actor, PermManageGlobalApis); err != nil {
		return nil, err
	}

	cfg, err := s.GetGlobalApi(ctx, apiID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		cfg.Name = *update.Name
	}
	if update.BaseURL != nil {
		cfg.BaseURL = *update.BaseURL
	}
	if update.AuthType != nil {
		cfg.AuthType = *update.AuthType
	}
	if update.APIKeyEnvVar != nil {
		cfg.APIKeyEnvVar = *update.APIKeyEnvVar
	}
	if update.Description != nil {
		cfg.Description = *update.Description
	}
	if update.AvailableToTiers != nil {
		cfg.AvailableToTiers = update.AvailableToTiers
	}
	if update.GlobalMonthlyCap != nil {
		cfg.GlobalMonthlyCap = *update.GlobalMonthlyCap
	}
	if update.GlobalDailyCap != nil {
		cfg.GlobalDailyCap = *update.GlobalDailyCap
	}
	cfg.LastUpdatedAt = time.Now().UTC()

	if err := s.store.SetGlobal(ctx, store.CollectionGlobalApiConfigs, apiID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeleteGlobalApi removes a platform API config
func (s *Service) DeleteGlobalApi(ctx context.Context, apiID string, actor *models.UserProfile) error {
	if err := requirePermission(actor, PermManageGlobalApis); err != nil {
		return err
	}

	// Delete is idempotent at the store layer; surface a 404 ourselves
	if _, err := s.GetGlobalApi(ctx, apiID); err != nil {
		return err
	}
	return s.store.DeleteGlobal(ctx, store.CollectionGlobalApiConfigs, apiID)
}
