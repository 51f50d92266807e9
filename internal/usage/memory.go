package usage

import (
	"context"
	"sync"
	"time"

	"github.com/aimerfeng/TierLink/internal/models"
)

// MemoryRepository is an in-memory usage repository for tests. Increment
// mirrors the Postgres upsert semantics: reconcile and add under one lock.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*models.UsageRecord
	// FailWith makes every operation return the given error
	FailWith error
}

// NewMemoryRepository creates an empty in-memory usage repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.UsageRecord)}
}

func recordKey(userID, apiID string) string {
	return userID + "\x00" + apiID
}

func (r *MemoryRepository) Get(_ context.Context, userID, apiID string) (*models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	record, ok := r.records[recordKey(userID, apiID)]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryRepository) Increment(_ context.Context, userID, apiID, month, day string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}

	key := recordKey(userID, apiID)
	record, ok := r.records[key]
	if !ok {
		record = &models.UsageRecord{
			UserID:    userID,
			APIID:     apiID,
			CreatedAt: now,
		}
		r.records[key] = record
	}

	if record.LastResetMonth == month {
		record.MonthlyUsage++
	} else {
		record.MonthlyUsage = 1
		record.LastResetMonth = month
	}
	if record.LastResetDay == day {
		record.DailyUsage++
	} else {
		record.DailyUsage = 1
		record.LastResetDay = day
	}
	record.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) ListForAPI(_ context.Context, apiID string) ([]models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	var records []models.UsageRecord
	for _, record := range r.records {
		if record.APIID == apiID {
			records = append(records, *record)
		}
	}
	return records, nil
}

// Seed installs a record directly, for tests
func (r *MemoryRepository) Seed(record models.UsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := record
	r.records[recordKey(record.UserID, record.APIID)] = &clone
}
