package usage

import (
	"context"
	"time"

	"github.com/aimerfeng/TierLink/internal/models"
)

// Repository persists usage records. Increment must be atomic at the
// storage layer: a reconcile-then-add performed as one operation, never a
// read-modify-write, so concurrent increments for the same user+API are
// never lost.
type Repository interface {
	// Get returns the stored record, or (nil, nil) when none exists.
	// The returned record is raw: callers reconcile before trusting it.
	Get(ctx context.Context, userID, apiID string) (*models.UsageRecord, error)
	// Increment reconciles the record against the given period markers and
	// adds one to both counters in a single atomic operation, creating the
	// record when absent.
	Increment(ctx context.Context, userID, apiID, month, day string, now time.Time) error
	// ListForAPI returns every user's raw record for an API. Used by the
	// adjustment aggregator's cross-user scan.
	ListForAPI(ctx context.Context, apiID string) ([]models.UsageRecord, error)
}
