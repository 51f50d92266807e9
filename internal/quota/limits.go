package quota

import (
	"context"
	"errors"

	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// apiLimitsDoc mirrors the stored api_limits document shape
type apiLimitsDoc struct {
	Limits models.ApiLimitsConfig `json:"limits"`
}

// LimitsService reads and writes the global per-tier API limits document.
// Static limits are mutated by admin operations; the dynamic adjustment
// fields are written only by the adjustment aggregator.
type LimitsService struct {
	store store.Store
}

// NewLimitsService creates a limits service over the document store
func NewLimitsService(s store.Store) *LimitsService {
	return &LimitsService{store: s}
}

// GetConfig returns the full per-tier limits configuration. An absent
// document reads as empty configuration, not an error.
func (s *LimitsService) GetConfig(ctx context.Context) (models.ApiLimitsConfig, error) {
	var doc apiLimitsDoc
	err := store.GetGlobalAs(ctx, s.store, store.CollectionGlobalConfig, store.DocApiLimits, &doc)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if doc.Limits == nil {
		doc.Limits = models.ApiLimitsConfig{}
	}
	return doc.Limits, nil
}

// TierLimits returns the configured limits for one tier. An unconfigured
// tier gets zero limits, which denies every metered call until an
// administrator configures the tier.
func (s *LimitsService) TierLimits(ctx context.Context, tier string) (models.TierLimits, error) {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return models.TierLimits{}, err
	}
	return config[tier], nil
}

// UpdateLimits applies an admin update to one tier's static limits and
// returns the updated configuration. With replace, the tier entry is
// rebuilt from the update alone and its dynamic adjustments are cleared;
// otherwise set fields are merged and adjustments are preserved.
func (s *LimitsService) UpdateLimits(ctx context.Context, tier string, update models.TierLimitsUpdate, replace bool) (models.ApiLimitsConfig, error) {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	entry := config[tier]
	if replace {
		entry = models.TierLimits{}
	}
	if update.MonthlyCalls != nil {
		entry.MonthlyCalls = *update.MonthlyCalls
	}
	if update.DailyCalls != nil {
		entry.DailyCalls = *update.DailyCalls
	}
	config[tier] = entry

	if err := s.save(ctx, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SetAdjustments writes the dynamic deltas for one tier. Called only by
// the adjustment aggregator.
func (s *LimitsService) SetAdjustments(ctx context.Context, tier string, monthlyDelta, dailyDelta int64) error {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}

	entry, ok := config[tier]
	if !ok {
		return nil
	}
	if entry.DynamicMonthlyAdjustment == monthlyDelta && entry.DynamicDailyAdjustment == dailyDelta {
		return nil
	}
	entry.DynamicMonthlyAdjustment = monthlyDelta
	entry.DynamicDailyAdjustment = dailyDelta
	config[tier] = entry

	return s.save(ctx, config)
}

func (s *LimitsService) save(ctx context.Context, config models.ApiLimitsConfig) error {
	return s.store.SetGlobal(ctx, store.CollectionGlobalConfig, store.DocApiLimits, apiLimitsDoc{Limits: config})
}
