package adjust_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimerfeng/TierLink/internal/adjust"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
)

type fixture struct {
	store      *store.MemoryStore
	repo       *usage.MemoryRepository
	limits     *quota.LimitsService
	aggregator *adjust.Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	repo := usage.NewMemoryRepository()
	limits := quota.NewLimitsService(s)
	return &fixture{
		store:      s,
		repo:       repo,
		limits:     limits,
		aggregator: adjust.NewAggregator(s, usage.NewLedger(repo), limits),
	}
}

func (f *fixture) registerApi(t *testing.T, apiID string, monthlyCap, dailyCap int64) {
	t.Helper()
	cfg := models.GlobalApiConfig{
		ID:               apiID,
		Name:             apiID,
		GlobalMonthlyCap: monthlyCap,
		GlobalDailyCap:   dailyCap,
	}
	require.NoError(t, f.store.SetGlobal(context.Background(), store.CollectionGlobalApiConfigs, apiID, cfg))
}

func (f *fixture) setTierLimits(t *testing.T, tier string, monthly, daily int64) {
	t.Helper()
	_, err := f.limits.UpdateLimits(context.Background(), tier, models.TierLimitsUpdate{
		MonthlyCalls: &monthly,
		DailyCalls:   &daily,
	}, true)
	require.NoError(t, err)
}

// seedUsage spreads the given totals over a handful of users in the
// current period.
func (f *fixture) seedUsage(apiID string, monthlyTotal, dailyTotal int64) {
	now := time.Now().UTC()
	users := []string{"u1", "u2", "u3"}
	for i, userID := range users {
		share := monthlyTotal / int64(len(users))
		dailyShare := dailyTotal / int64(len(users))
		if i == 0 {
			share += monthlyTotal % int64(len(users))
			dailyShare += dailyTotal % int64(len(users))
		}
		f.repo.Seed(models.UsageRecord{
			UserID:         userID,
			APIID:          apiID,
			MonthlyUsage:   share,
			DailyUsage:     dailyShare,
			LastResetMonth: usage.MonthString(now),
			LastResetDay:   usage.DayString(now),
		})
	}
}

func (f *fixture) tierLimits(t *testing.T, tier string) models.TierLimits {
	t.Helper()
	config, err := f.limits.GetConfig(context.Background())
	require.NoError(t, err)
	return config[tier]
}

func TestRunPass_EightyPercentMonthlyAppliesQuarterCut(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "free", 100, 50)
	f.seedUsage("api-1", 850, 0)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	limits := f.tierLimits(t, "free")
	// 85% crosses the 80% threshold, not the 90% one: 100 x 0.75 = 75
	assert.Equal(t, int64(-25), limits.DynamicMonthlyAdjustment)
	assert.Equal(t, int64(0), limits.DynamicDailyAdjustment)
}

func TestRunPass_NinetyPercentMonthlyAppliesHalfCut(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "free", 100, 50)
	f.seedUsage("api-1", 950, 0)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	limits := f.tierLimits(t, "free")
	// 95% takes the 90% threshold's 0.50 factor alone, never both
	assert.Equal(t, int64(-50), limits.DynamicMonthlyAdjustment)
}

func TestRunPass_DailyThresholds(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 0, 100)
	f.setTierLimits(t, "free", 200, 40)

	f.seedUsage("api-1", 0, 75)
	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))
	// 75% crosses the 70% daily threshold: 40 x 0.80 = 32
	assert.Equal(t, int64(-8), f.tierLimits(t, "free").DynamicDailyAdjustment)

	f.seedUsage("api-1", 0, 95)
	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))
	// 95% crosses the 90% daily threshold: 40 x 0.40 = 16
	assert.Equal(t, int64(-24), f.tierLimits(t, "free").DynamicDailyAdjustment)
}

func TestRunPass_BelowThresholdsRestores(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "free", 100, 50)

	f.seedUsage("api-1", 850, 0)
	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))
	require.Equal(t, int64(-25), f.tierLimits(t, "free").DynamicMonthlyAdjustment)

	f.seedUsage("api-1", 100, 0)
	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))
	assert.Equal(t, int64(0), f.tierLimits(t, "free").DynamicMonthlyAdjustment, "no lingering throttle below thresholds")
}

func TestRunPass_UnlimitedTierNeverAdjusted(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "max", models.UnlimitedCalls, models.UnlimitedCalls)
	f.seedUsage("api-1", 999, 0)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	limits := f.tierLimits(t, "max")
	assert.Equal(t, int64(0), limits.DynamicMonthlyAdjustment)
	assert.Equal(t, models.UnlimitedCalls, limits.EffectiveMonthly())
}

func TestRunPass_StaleRecordsContributeZero(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "free", 100, 50)

	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	f.repo.Seed(models.UsageRecord{
		UserID:         "u1",
		APIID:          "api-1",
		MonthlyUsage:   950,
		DailyUsage:     0,
		LastResetMonth: usage.MonthString(lastMonth),
		LastResetDay:   usage.DayString(lastMonth),
	})

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	assert.Equal(t, int64(0), f.tierLimits(t, "free").DynamicMonthlyAdjustment, "last month's counters must not throttle this month")
}

func TestRunPass_FloorsScaledLimit(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 1000, 0)
	f.setTierLimits(t, "free", 33, 0)
	f.seedUsage("api-1", 850, 0)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	// floor(33 x 0.75) = 24, delta -9
	assert.Equal(t, int64(-9), f.tierLimits(t, "free").DynamicMonthlyAdjustment)
}

func TestRunPass_NoCapsNoAdjustment(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-1", 0, 0)
	f.setTierLimits(t, "free", 100, 50)
	f.seedUsage("api-1", 1_000_000, 1_000_000)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-1"))

	limits := f.tierLimits(t, "free")
	assert.Equal(t, int64(0), limits.DynamicMonthlyAdjustment)
	assert.Equal(t, int64(0), limits.DynamicDailyAdjustment)
}

func TestRunPass_UncappedApiLeavesExistingThrottleAlone(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-capped", 100, 0)
	f.registerApi(t, "api-free", 0, 0)
	f.setTierLimits(t, "free", 100, 50)

	f.seedUsage("api-capped", 95, 0)
	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-capped"))
	require.Equal(t, int64(-50), f.tierLimits(t, "free").DynamicMonthlyAdjustment)

	require.NoError(t, f.aggregator.RunPass(context.Background(), "api-free"))

	assert.Equal(t, int64(-50), f.tierLimits(t, "free").DynamicMonthlyAdjustment, "a capless pass must not erase another API's throttle")
}

func TestRunAll_CoversRegisteredApis(t *testing.T) {
	f := newFixture(t)
	f.registerApi(t, "api-2", 100, 0)
	f.setTierLimits(t, "free", 100, 50)
	f.seedUsage("api-2", 95, 0)

	require.NoError(t, f.aggregator.RunAll(context.Background()))

	assert.Equal(t, int64(-50), f.tierLimits(t, "free").DynamicMonthlyAdjustment)
}
