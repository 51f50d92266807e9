// Package adjust implements the dynamic adjustment aggregator: a periodic
// job that sums cross-user consumption per API and throttles or restores
// tier default limits based on global utilization.
package adjust

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
)

// threshold maps a utilization floor to the scale factor applied to every
// tier's static limit once crossed.
type threshold struct {
	utilization decimal.Decimal
	factor      decimal.Decimal
}

// Ordered highest-first; the first crossed threshold wins, never cumulative.
var (
	monthlyThresholds = []threshold{
		{decimal.NewFromFloat(0.90), decimal.NewFromFloat(0.50)},
		{decimal.NewFromFloat(0.80), decimal.NewFromFloat(0.75)},
	}
	dailyThresholds = []threshold{
		{decimal.NewFromFloat(0.90), decimal.NewFromFloat(0.40)},
		{decimal.NewFromFloat(0.70), decimal.NewFromFloat(0.80)},
	}
)

// factorOne leaves the static limit untouched (adjustment resets to zero)
var factorOne = decimal.NewFromInt(1)

// Aggregator computes global per-API utilization and writes the resulting
// dynamic deltas into the tier limits configuration.
type Aggregator struct {
	store  store.Store
	ledger *usage.Ledger
	limits *quota.LimitsService
	logger zerolog.Logger
}

// NewAggregator creates a dynamic adjustment aggregator
func NewAggregator(s store.Store, ledger *usage.Ledger, limits *quota.LimitsService) *Aggregator {
	return &Aggregator{
		store:  s,
		ledger: ledger,
		limits: limits,
		logger: logging.NewLogger("adjust"),
	}
}

// RunPass recomputes the dynamic adjustments for one API. Consumption is
// summed from reconciled usage records, so counters from a rolled-over
// period contribute zero.
func (a *Aggregator) RunPass(ctx context.Context, apiID string) error {
	apiConfig, err := a.apiConfig(ctx, apiID)
	if err != nil {
		return fmt.Errorf("load api config %s: %w", apiID, err)
	}

	// An API without global caps never drives adjustments. Skipping here
	// also keeps it from overwriting deltas another API's pass just set.
	if apiConfig.GlobalMonthlyCap <= 0 && apiConfig.GlobalDailyCap <= 0 {
		return nil
	}

	records, err := a.ledger.ListForAPI(ctx, apiID)
	if err != nil {
		return fmt.Errorf("list usage for %s: %w", apiID, err)
	}

	var totalMonthly, totalDaily int64
	for _, record := range records {
		totalMonthly += record.MonthlyUsage
		totalDaily += record.DailyUsage
	}

	monthlyFactor := scaleFactor(totalMonthly, apiConfig.GlobalMonthlyCap, monthlyThresholds)
	dailyFactor := scaleFactor(totalDaily, apiConfig.GlobalDailyCap, dailyThresholds)

	limitsConfig, err := a.limits.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("load limits config: %w", err)
	}

	for tier, entry := range limitsConfig {
		monthlyDelta := adjustmentDelta(entry.MonthlyCalls, monthlyFactor)
		dailyDelta := adjustmentDelta(entry.DailyCalls, dailyFactor)

		if entry.DynamicMonthlyAdjustment == monthlyDelta && entry.DynamicDailyAdjustment == dailyDelta {
			continue
		}
		if err := a.limits.SetAdjustments(ctx, tier, monthlyDelta, dailyDelta); err != nil {
			return fmt.Errorf("write adjustments for tier %s: %w", tier, err)
		}

		logging.LogAdjustment(apiID, tier, monthlyDelta, dailyDelta)
		monitoring.SetAdjustmentDelta(apiID, tier, "monthly", monthlyDelta)
		monitoring.SetAdjustmentDelta(apiID, tier, "daily", dailyDelta)
	}

	return nil
}

// RunAll runs an adjustment pass over every registered global API
func (a *Aggregator) RunAll(ctx context.Context) error {
	docs, err := a.store.ListGlobal(ctx, store.CollectionGlobalApiConfigs)
	if err != nil {
		monitoring.RecordAdjustmentPass("error")
		return fmt.Errorf("list global api configs: %w", err)
	}

	var failed int
	for apiID := range docs {
		if err := a.RunPass(ctx, apiID); err != nil {
			failed++
			a.logger.Error().Err(err).Str("api_id", apiID).Msg("Adjustment pass failed")
		}
	}

	if failed > 0 {
		monitoring.RecordAdjustmentPass("partial")
		return fmt.Errorf("adjustment pass failed for %d of %d apis", failed, len(docs))
	}
	monitoring.RecordAdjustmentPass("ok")
	return nil
}

func (a *Aggregator) apiConfig(ctx context.Context, apiID string) (*models.GlobalApiConfig, error) {
	raw, err := a.store.GetGlobal(ctx, store.CollectionGlobalApiConfigs, apiID)
	if err != nil {
		return nil, err
	}
	var cfg models.GlobalApiConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// scaleFactor returns the factor for the highest crossed threshold, or one
// when utilization is below every threshold or the API has no cap.
func scaleFactor(total, globalCap int64, thresholds []threshold) decimal.Decimal {
	if globalCap <= 0 {
		return factorOne
	}
	utilization := decimal.NewFromInt(total).Div(decimal.NewFromInt(globalCap))
	for _, t := range thresholds {
		if utilization.GreaterThanOrEqual(t.utilization) {
			return t.factor
		}
	}
	return factorOne
}

// adjustmentDelta converts a scale factor into the delta stored alongside
// the static limit: floor(static x factor) - static. Unlimited tiers are
// never adjusted.
func adjustmentDelta(static int64, factor decimal.Decimal) int64 {
	if static == models.UnlimitedCalls || factor.Equal(factorOne) {
		return 0
	}
	scaled := decimal.NewFromInt(static).Mul(factor).Floor().IntPart()
	return scaled - static
}
