package usage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
)

// Ledger is the read/write surface over usage records. Reads are always
// reconciled against the current UTC period before being returned;
// increments are best-effort and never fail the caller's request.
type Ledger struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewLedger creates a usage ledger over a repository
func NewLedger(repo Repository) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logging.NewLogger("usage"),
		now:    time.Now,
	}
}

// Get returns the user's reconciled usage for an API. A missing record
// comes back as a zero-valued record for the current period, never an error.
func (l *Ledger) Get(ctx context.Context, userID, apiID string) (*models.UsageRecord, error) {
	now := l.now()

	record, err := l.repo.Get(ctx, userID, apiID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return NewRecord(userID, apiID, now), nil
	}

	Reconcile(record, now)
	return record, nil
}

// Increment records one call against the user's counters. Failures are
// logged and swallowed: the caller's request already passed its quota check
// and a ledger hiccup must not turn it into an error. The worst case is a
// briefly under-counted quota.
func (l *Ledger) Increment(ctx context.Context, userID, apiID string) {
	now := l.now()

	err := l.repo.Increment(ctx, userID, apiID, MonthString(now), DayString(now), now)
	monitoring.RecordUsageIncrement(err)
	if err != nil {
		l.logger.Error().Err(err).
			Str("user_id", userID).
			Str("api_id", apiID).
			Msg("Failed to increment usage counters")
	}
}

// ListForAPI returns every user's usage for an API, reconciled against the
// current period so stale records read as zero consumption.
func (l *Ledger) ListForAPI(ctx context.Context, apiID string) ([]models.UsageRecord, error) {
	now := l.now()

	records, err := l.repo.ListForAPI(ctx, apiID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		Reconcile(&records[i], now)
	}
	return records, nil
}
