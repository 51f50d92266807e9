package quota_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
)

type fixture struct {
	store  *store.MemoryStore
	repo   *usage.MemoryRepository
	limits *quota.LimitsService
	engine *quota.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	repo := usage.NewMemoryRepository()
	limits := quota.NewLimitsService(s)
	return &fixture{
		store:  s,
		repo:   repo,
		limits: limits,
		engine: quota.NewEngine(s, usage.NewLedger(repo), limits),
	}
}

func (f *fixture) setTierLimits(t *testing.T, tier string, monthly, daily int64) {
	t.Helper()
	_, err := f.limits.UpdateLimits(context.Background(), tier, models.TierLimitsUpdate{
		MonthlyCalls: &monthly,
		DailyCalls:   &daily,
	}, true)
	require.NoError(t, err)
}

func (f *fixture) setAdjustments(t *testing.T, tier string, monthly, daily int64) {
	t.Helper()
	require.NoError(t, f.limits.SetAdjustments(context.Background(), tier, monthly, daily))
}

func (f *fixture) seedUsage(userID, apiID string, monthly, daily int64) {
	now := time.Now().UTC()
	f.repo.Seed(models.UsageRecord{
		UserID:         userID,
		APIID:          apiID,
		MonthlyUsage:   monthly,
		DailyUsage:     daily,
		LastResetMonth: usage.MonthString(now),
		LastResetDay:   usage.DayString(now),
	})
}

func (f *fixture) setUserApiConfig(t *testing.T, userID string, cfg models.UserApiConfig) {
	t.Helper()
	require.NoError(t, f.store.SetUser(context.Background(), userID, store.CollectionUserApiConfigs, cfg.ID, cfg))
}

func profile(userID, tier string, roles []string, perms map[string]any) *models.UserProfile {
	return &models.UserProfile{
		UserID:           userID,
		Tier:             tier,
		Roles:            roles,
		Status:           models.UserStatusActive,
		AdminPermissions: perms,
	}
}

func int64p(v int64) *int64 { return &v }

func TestCheckLimit_CreatorGlobalOverride(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 0, 0)

	p := profile("u1", "free", []string{"creator"}, map[string]any{"unlimited_api_access": true})
	decision, err := f.engine.CheckLimit(context.Background(), p, "api-1")

	require.NoError(t, err)
	assert.True(t, decision.Allowed, "creator with unlimited_api_access bypasses a zero tier limit")
}

func TestCheckLimit_CreatorRoleAloneDoesNotBypass(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 0, 0)

	p := profile("u1", "free", []string{"creator"}, nil)
	decision, err := f.engine.CheckLimit(context.Background(), p, "api-1")

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckLimit_CreatorOverrideUnlimited(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 0, 0)
	f.setUserApiConfig(t, "u1", models.UserApiConfig{ID: "api-1", Name: "x", CreatorOverrideUnlimited: true})
	f.seedUsage("u1", "api-1", 1_000_000, 1_000_000)

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckLimit_CreatorOverrideThresholds(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 1000, 1000)
	f.setUserApiConfig(t, "u1", models.UserApiConfig{ID: "api-1", Name: "x", CreatorOverrideMonthly: int64p(10)})

	f.seedUsage("u1", "api-1", 10, 0)
	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, apierrors.QuotaReasonCreatorOverrideMonthly, decision.Reason)

	f.seedUsage("u1", "api-1", 9, 0)
	decision, err = f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

// A numeric creator override is authoritative for the whole check: the
// unset daily period must not fall through to tier limits that would deny.
func TestCheckLimit_PartialCreatorOverrideShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 0, 0)
	f.setUserApiConfig(t, "u1", models.UserApiConfig{ID: "api-1", Name: "x", CreatorOverrideMonthly: int64p(100)})
	f.seedUsage("u1", "api-1", 50, 50)

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.True(t, decision.Allowed, "unset daily override must not fall through to the zero tier limit")
}

func TestCheckLimit_UserDefinedLimits(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 1000, 1000)
	f.setUserApiConfig(t, "u1", models.UserApiConfig{ID: "api-1", Name: "x", UserDefinedLimitMonthly: int64p(5)})

	f.seedUsage("u1", "api-1", 5, 0)
	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, apierrors.QuotaReasonUserLimitMonthly, decision.Reason)

	f.seedUsage("u1", "api-1", 4, 0)
	decision, err = f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckLimit_TierLimitWithDynamicAdjustment(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 100, 1000)
	f.setAdjustments(t, "free", -30, 0)

	// Effective monthly limit is 70
	f.seedUsage("u1", "api-1", 71, 0)
	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, apierrors.QuotaReasonTierMonthly, decision.Reason)

	f.seedUsage("u1", "api-1", 69, 0)
	decision, err = f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckLimit_UnlimitedTierIgnoresAdjustment(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "max", models.UnlimitedCalls, models.UnlimitedCalls)
	f.setAdjustments(t, "max", -1_000_000, -1_000_000)
	f.seedUsage("u1", "api-1", 10_000_000, 10_000_000)

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "max", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckLimit_DailyLimitHitDespiteMonthlyHeadroom(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 10, 3)
	f.seedUsage("u1", "api-1", 2, 3)

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, apierrors.QuotaReasonTierDaily, decision.Reason)
}

func TestCheckLimit_StaleUsageReadsAsZero(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 10, 3)
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	f.repo.Seed(models.UsageRecord{
		UserID:         "u1",
		APIID:          "api-1",
		MonthlyUsage:   10,
		DailyUsage:     3,
		LastResetMonth: usage.MonthString(lastMonth),
		LastResetDay:   usage.DayString(lastMonth),
	})

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.True(t, decision.Allowed, "counters from a rolled-over period must not deny")
}

func TestCheckLimit_UnconfiguredTierDenies(t *testing.T) {
	f := newFixture(t)

	decision, err := f.engine.CheckLimit(context.Background(), profile("u1", "ghost", []string{"user"}, nil), "api-1")

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

type failingStore struct {
	store.Store
}

func (f failingStore) GetUser(context.Context, string, string, string) (json.RawMessage, error) {
	return nil, errors.New("store down")
}

func TestCheckLimit_FailsClosedOnStoreError(t *testing.T) {
	f := newFixture(t)
	f.setTierLimits(t, "free", 1000, 1000)
	engine := quota.NewEngine(failingStore{f.store}, usage.NewLedger(f.repo), f.limits)

	_, err := engine.CheckLimit(context.Background(), profile("u1", "free", []string{"user"}, nil), "api-1")

	assert.Error(t, err, "an unresolvable check must deny, not silently allow")
}
