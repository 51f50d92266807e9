package models

import (
	"time"
)

// GlobalApiConfig describes a platform-provided external API integration
type GlobalApiConfig struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BaseURL          string    `json:"base_url"`
	AuthType         string    `json:"auth_type"`
	APIKeyEnvVar     string    `json:"api_key_env_var,omitempty"`
	Description      string    `json:"description,omitempty"`
	AvailableToTiers []string  `json:"available_to_tiers"`
	GlobalMonthlyCap int64     `json:"global_monthly_cap,omitempty"`
	GlobalDailyCap   int64     `json:"global_daily_cap,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// GlobalApiConfigUpdate carries a partial update to a global API config
type GlobalApiConfigUpdate struct {
	Name             *string  `json:"name,omitempty"`
	BaseURL          *string  `json:"base_url,omitempty"`
	AuthType         *string  `json:"auth_type,omitempty"`
	APIKeyEnvVar     *string  `json:"api_key_env_var,omitempty"`
	Description      *string  `json:"description,omitempty"`
	AvailableToTiers []string `json:"available_to_tiers,omitempty"`
	GlobalMonthlyCap *int64   `json:"global_monthly_cap,omitempty"`
	GlobalDailyCap   *int64   `json:"global_daily_cap,omitempty"`
}

// UserApiConfig is a per-user record for a custom, self-supplied API.
// The creator_override_* fields are settable only by the creator role and
// take precedence over the user's own limits.
type UserApiConfig struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	BaseURL                  string    `json:"base_url,omitempty"`
	UserDefinedLimitMonthly  *int64    `json:"user_defined_limit_monthly,omitempty"`
	UserDefinedLimitDaily    *int64    `json:"user_defined_limit_daily,omitempty"`
	CreatorOverrideUnlimited bool      `json:"creator_override_unlimited,omitempty"`
	CreatorOverrideMonthly   *int64    `json:"creator_override_monthly,omitempty"`
	CreatorOverrideDaily     *int64    `json:"creator_override_daily,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
	LastUpdatedAt            time.Time `json:"last_updated_at"`
}

// UserApiConfigUpdate carries a partial update to a user's API config.
// The creator override fields are honored only for creator-role actors.
type UserApiConfigUpdate struct {
	Name                     *string `json:"name,omitempty"`
	BaseURL                  *string `json:"base_url,omitempty"`
	UserDefinedLimitMonthly  *int64  `json:"user_defined_limit_monthly,omitempty"`
	UserDefinedLimitDaily    *int64  `json:"user_defined_limit_daily,omitempty"`
	CreatorOverrideUnlimited *bool   `json:"creator_override_unlimited,omitempty"`
	CreatorOverrideMonthly   *int64  `json:"creator_override_monthly,omitempty"`
	CreatorOverrideDaily     *int64  `json:"creator_override_daily,omitempty"`
}

// HasCreatorOverride reports whether any creator numeric override is set.
// Presence of either threshold makes the override stage authoritative.
func (c *UserApiConfig) HasCreatorOverride() bool {
	return c.CreatorOverrideMonthly != nil || c.CreatorOverrideDaily != nil
}

// HasUserDefinedLimit reports whether the user set either of their own limits
func (c *UserApiConfig) HasUserDefinedLimit() bool {
	return c.UserDefinedLimitMonthly != nil || c.UserDefinedLimitDaily != nil
}
