package usage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/usage"
)

func TestReconcile_DayRollover(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	record := &models.UsageRecord{
		UserID:         "user-1",
		APIID:          "api-1",
		MonthlyUsage:   42,
		DailyUsage:     7,
		LastResetMonth: "2026-08",
		LastResetDay:   "2026-08-27",
	}

	changed := usage.Reconcile(record, now)

	require.True(t, changed)
	assert.Equal(t, int64(0), record.DailyUsage)
	assert.Equal(t, "2026-08-28", record.LastResetDay)
	assert.Equal(t, int64(42), record.MonthlyUsage, "monthly counter must survive a day rollover")
	assert.Equal(t, "2026-08", record.LastResetMonth)
}

func TestReconcile_MonthRolloverResetsBoth(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	record := &models.UsageRecord{
		MonthlyUsage:   99,
		DailyUsage:     3,
		LastResetMonth: "2026-08",
		LastResetDay:   "2026-08-31",
	}

	usage.Reconcile(record, now)

	assert.Equal(t, int64(0), record.MonthlyUsage)
	assert.Equal(t, int64(0), record.DailyUsage)
	assert.Equal(t, "2026-09", record.LastResetMonth)
	assert.Equal(t, "2026-09-01", record.LastResetDay)
}

func TestReconcile_CurrentPeriodUntouched(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	record := &models.UsageRecord{
		MonthlyUsage:   5,
		DailyUsage:     2,
		LastResetMonth: "2026-08",
		LastResetDay:   "2026-08-28",
	}

	changed := usage.Reconcile(record, now)

	assert.False(t, changed)
	assert.Equal(t, int64(5), record.MonthlyUsage)
	assert.Equal(t, int64(2), record.DailyUsage)
}

// Reconciliation always lands the record in the current period, and a
// counter is zeroed exactly when its marker was stale.
func TestReconcile_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		now := time.Unix(rapid.Int64Range(1_500_000_000, 2_500_000_000).Draw(rt, "now"), 0).UTC()
		staleMonth := rapid.Bool().Draw(rt, "staleMonth")
		staleDay := rapid.Bool().Draw(rt, "staleDay")

		record := &models.UsageRecord{
			MonthlyUsage:   rapid.Int64Range(0, 1_000_000).Draw(rt, "monthly"),
			DailyUsage:     rapid.Int64Range(0, 1_000_000).Draw(rt, "daily"),
			LastResetMonth: usage.MonthString(now),
			LastResetDay:   usage.DayString(now),
		}
		if staleMonth {
			record.LastResetMonth = usage.MonthString(now.AddDate(0, -1, 0))
		}
		if staleDay {
			record.LastResetDay = usage.DayString(now.AddDate(0, 0, -1))
		}
		wantMonthly := record.MonthlyUsage
		wantDaily := record.DailyUsage

		usage.Reconcile(record, now)

		if record.LastResetMonth != usage.MonthString(now) {
			rt.Fatalf("month marker not advanced: %s", record.LastResetMonth)
		}
		if record.LastResetDay != usage.DayString(now) {
			rt.Fatalf("day marker not advanced: %s", record.LastResetDay)
		}
		if staleMonth && record.MonthlyUsage != 0 {
			rt.Fatalf("stale monthly counter not zeroed: %d", record.MonthlyUsage)
		}
		if !staleMonth && record.MonthlyUsage != wantMonthly {
			rt.Fatalf("fresh monthly counter changed: %d != %d", record.MonthlyUsage, wantMonthly)
		}
		if staleDay && record.DailyUsage != 0 {
			rt.Fatalf("stale daily counter not zeroed: %d", record.DailyUsage)
		}
		if !staleDay && record.DailyUsage != wantDaily {
			rt.Fatalf("fresh daily counter changed: %d != %d", record.DailyUsage, wantDaily)
		}
	})
}

func TestLedger_GetAbsentReturnsZeroRecord(t *testing.T) {
	ledger := usage.NewLedger(usage.NewMemoryRepository())

	record, err := ledger.Get(context.Background(), "user-1", "api-1")

	require.NoError(t, err)
	assert.Equal(t, int64(0), record.MonthlyUsage)
	assert.Equal(t, int64(0), record.DailyUsage)
	assert.Equal(t, usage.MonthString(time.Now()), record.LastResetMonth)
}

func TestLedger_IncrementThenGet(t *testing.T) {
	ledger := usage.NewLedger(usage.NewMemoryRepository())
	ctx := context.Background()

	ledger.Increment(ctx, "user-1", "api-1")
	ledger.Increment(ctx, "user-1", "api-1")

	record, err := ledger.Get(ctx, "user-1", "api-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.MonthlyUsage)
	assert.Equal(t, int64(2), record.DailyUsage)
}

func TestLedger_IncrementReconcilesStaleRecord(t *testing.T) {
	repo := usage.NewMemoryRepository()
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	repo.Seed(models.UsageRecord{
		UserID:         "user-1",
		APIID:          "api-1",
		MonthlyUsage:   50,
		DailyUsage:     5,
		LastResetMonth: usage.MonthString(lastMonth),
		LastResetDay:   usage.DayString(lastMonth),
	})
	ledger := usage.NewLedger(repo)
	ctx := context.Background()

	ledger.Increment(ctx, "user-1", "api-1")

	record, err := ledger.Get(ctx, "user-1", "api-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.MonthlyUsage, "rolled-over counter restarts at 1")
	assert.Equal(t, int64(1), record.DailyUsage)
}

// Two parallel callers incrementing the same user+api must never lose an
// update: counters end up increased by exactly the number of calls.
func TestLedger_ConcurrentIncrementNoLostUpdates(t *testing.T) {
	ledger := usage.NewLedger(usage.NewMemoryRepository())
	ctx := context.Background()

	const callers = 2
	const callsEach = 50

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ledger.Increment(ctx, "user-1", "api-1")
			}
		}()
	}
	wg.Wait()

	record, err := ledger.Get(ctx, "user-1", "api-1")
	require.NoError(t, err)
	assert.Equal(t, int64(callers*callsEach), record.MonthlyUsage)
	assert.Equal(t, int64(callers*callsEach), record.DailyUsage)
}

func TestLedger_IncrementSwallowsRepositoryFailure(t *testing.T) {
	repo := usage.NewMemoryRepository()
	repo.FailWith = assert.AnError
	ledger := usage.NewLedger(repo)

	// Must not panic or propagate; the caller's request already succeeded
	ledger.Increment(context.Background(), "user-1", "api-1")
}

func TestLedger_ListForAPIReconciles(t *testing.T) {
	repo := usage.NewMemoryRepository()
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	repo.Seed(models.UsageRecord{
		UserID:         "user-1",
		APIID:          "api-1",
		MonthlyUsage:   10,
		DailyUsage:     9,
		LastResetMonth: usage.MonthString(time.Now()),
		LastResetDay:   usage.DayString(yesterday),
	})
	ledger := usage.NewLedger(repo)

	records, err := ledger.ListForAPI(context.Background(), "api-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(0), records[0].DailyUsage, "stale daily counter reads as zero")
	assert.Equal(t, int64(10), records[0].MonthlyUsage)
}
