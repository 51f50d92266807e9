// Package usage tracks per-user, per-API consumption counters with
// automatic monthly and daily period rollover.
package usage

import (
	"time"

	"github.com/aimerfeng/TierLink/internal/models"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// MonthString formats t's UTC month as YYYY-MM
func MonthString(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// DayString formats t's UTC day as YYYY-MM-DD
func DayString(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Reconcile zeroes any counter whose stored period marker no longer matches
// the wall clock and advances the marker. The month and day checks are
// independent; both may fire in the same call. Returns true when the record
// was modified.
func Reconcile(record *models.UsageRecord, now time.Time) bool {
	changed := false

	if month := MonthString(now); record.LastResetMonth != month {
		record.MonthlyUsage = 0
		record.LastResetMonth = month
		changed = true
	}

	if day := DayString(now); record.LastResetDay != day {
		record.DailyUsage = 0
		record.LastResetDay = day
		changed = true
	}

	return changed
}

// NewRecord returns a zero-valued record for the current period
func NewRecord(userID, apiID string, now time.Time) *models.UsageRecord {
	return &models.UsageRecord{
		UserID:         userID,
		APIID:          apiID,
		LastResetMonth: MonthString(now),
		LastResetDay:   DayString(now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
