package models

import (
	"time"
)

// UsageRecord tracks a user's consumption of one API within the current
// monthly and daily periods. LastResetMonth/LastResetDay always name the
// period the counters were accumulated in; readers must reconcile against
// the wall clock before trusting the counters.
type UsageRecord struct {
	UserID         string    `json:"user_id"`
	APIID          string    `json:"api_id"`
	MonthlyUsage   int64     `json:"monthly_usage"`
	DailyUsage     int64     `json:"daily_usage"`
	LastResetMonth string    `json:"last_reset_month"`
	LastResetDay   string    `json:"last_reset_day"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
