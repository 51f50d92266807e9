package admin

import (
	"context"
	"errors"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// Stored document shapes for the global configuration singletons
type capabilitiesDoc struct {
	Capabilities models.CapabilityConfig `json:"capabilities"`
}

type tiersDoc struct {
	Tiers models.TierConfig `json:"tiers"`
}

// GetCapabilities returns the capability configuration. Absent reads as
// empty, never an error.
func (s *Service) GetCapabilities(ctx context.Context) (models.CapabilityConfig, error) {
	var doc capabilitiesDoc
	err := store.GetGlobalAs(ctx, s.store, store.CollectionGlobalConfig, store.DocRbacCapabilities, &doc)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if doc.Capabilities == nil {
		doc.Capabilities = models.CapabilityConfig{}
	}
	return doc.Capabilities, nil
}

// SetCapability upserts one capability definition. Creator-only. There is
// no delete: a capability is retired by redefining it as disabled.
func (s *Service) SetCapability(ctx context.Context, key string, capability models.Capability, actor *models.UserProfile) (models.CapabilityConfig, error) {
	if err := requireCreator(actor); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apierrors.NewValidationError(map[string]string{"key": "capability key must not be empty"})
	}

	config, err := s.GetCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	config[key] = capability

	if err := s.saveCapabilities(ctx, config); err != nil {
		return nil, err
	}
	return config, nil
}

// ReplaceCapabilities swaps the whole capability configuration. Creator-only.
func (s *Service) ReplaceCapabilities(ctx context.Context, config models.CapabilityConfig, actor *models.UserProfile) error {
	if err := requireCreator(actor); err != nil {
		return err
	}
	if config == nil {
		config = models.CapabilityConfig{}
	}
	return s.saveCapabilities(ctx, config)
}

func (s *Service) saveCapabilities(ctx context.Context, config models.CapabilityConfig) error {
	if err := s.store.SetGlobal(ctx, store.CollectionGlobalConfig, store.DocRbacCapabilities, capabilitiesDoc{Capabilities: config}); err != nil {
		return err
	}
	s.snapshots.Invalidate(ctx)
	return nil
}

// GetTierHierarchy returns the tier configuration
func (s *Service) GetTierHierarchy(ctx context.Context) (models.TierConfig, error) {
	var doc tiersDoc
	err := store.GetGlobalAs(ctx, s.store, store.CollectionGlobalConfig, store.DocTiers, &doc)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if doc.Tiers == nil {
		doc.Tiers = models.TierConfig{}
	}
	return doc.Tiers, nil
}

// UpdateTierHierarchy replaces the tier configuration. Creator-only.
func (s *Service) UpdateTierHierarchy(ctx context.Context, tiers models.TierConfig, actor *models.UserProfile) error {
	if err := requireCreator(actor); err != nil {
		return err
	}
	for name := range tiers {
		if name == "" {
			return apierrors.NewValidationError(map[string]string{"tier": "tier name must not be empty"})
		}
	}

	if err := s.store.SetGlobal(ctx, store.CollectionGlobalConfig, store.DocTiers, tiersDoc{Tiers: tiers}); err != nil {
		return err
	}
	s.snapshots.Invalidate(ctx)
	return nil
}

// GetApiLimits returns the per-tier limits configuration
func (s *Service) GetApiLimits(ctx context.Context) (models.ApiLimitsConfig, error) {
	return s.limits.GetConfig(ctx)
}

// UpdateApiLimits changes one tier's static limits. Gated on creator or
// the can_manage_api_limits permission. Dynamic adjustment fields are
// preserved on merge and cleared on replace.
func (s *Service) UpdateApiLimits(ctx context.Context, tier string, update models.TierLimitsUpdate, replace bool, actor *models.UserProfile) (models.ApiLimitsConfig, error) {
	if err := requirePermission(actor, PermManageApiLimits); err != nil {
		return nil, err
	}
	if tier == "" {
		return nil, apierrors.NewValidationError(map[string]string{"tier": "tier name must not be empty"})
	}
	return s.limits.UpdateLimits(ctx, tier, update, replace)
}
