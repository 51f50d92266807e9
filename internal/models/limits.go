package models

// UnlimitedCalls is the sentinel for a tier without a cap. A dynamic
// adjustment never converts an unlimited tier into a capped one.
const UnlimitedCalls int64 = -1

// TierLimits holds the static per-tier call limits plus the dynamic deltas
// written by the adjustment aggregator.
type TierLimits struct {
	MonthlyCalls             int64 `json:"monthly_calls"`
	DailyCalls               int64 `json:"daily_calls"`
	DynamicMonthlyAdjustment int64 `json:"dynamic_monthly_adjustment"`
	DynamicDailyAdjustment   int64 `json:"dynamic_daily_adjustment"`
}

// EffectiveMonthly returns the monthly limit with the dynamic delta applied,
// floored at zero. Unlimited stays unlimited.
func (l TierLimits) EffectiveMonthly() int64 {
	return effectiveLimit(l.MonthlyCalls, l.DynamicMonthlyAdjustment)
}

// EffectiveDaily returns the daily limit with the dynamic delta applied,
// floored at zero. Unlimited stays unlimited.
func (l TierLimits) EffectiveDaily() int64 {
	return effectiveLimit(l.DailyCalls, l.DynamicDailyAdjustment)
}

func effectiveLimit(static, delta int64) int64 {
	if static == UnlimitedCalls {
		return UnlimitedCalls
	}
	adjusted := static + delta
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// ApiLimitsConfig is the global api_limits document: tier name -> limits
type ApiLimitsConfig map[string]TierLimits

// TierLimitsUpdate carries an admin update to a tier's static limits.
// Nil fields are left untouched unless Replace is requested by the caller.
type TierLimitsUpdate struct {
	MonthlyCalls *int64 `json:"monthly_calls,omitempty"`
	DailyCalls   *int64 `json:"daily_calls,omitempty"`
}
