package models

// Capability defines a single feature flag or setting resolved per user.
// Roles maps a role or tier name to an override value that takes precedence
// over Default.
type Capability struct {
	Default any            `json:"default"`
	Roles   map[string]any `json:"roles,omitempty"`
}

// CapabilityConfig is the global capability-configuration document,
// keyed by capability name (e.g. "web_search_enabled").
type CapabilityConfig map[string]Capability

// TierInfo describes a single subscription tier
type TierInfo struct {
	Level       uint   `json:"level"`
	Description string `json:"description"`
}

// TierConfig is the global tier-hierarchy document. Level is a strict
// ordering: a higher level outranks a lower one.
type TierConfig map[string]TierInfo
