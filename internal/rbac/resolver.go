// Package rbac resolves effective capability values from a user's tier,
// roles and admin-permission overrides against a versioned configuration
// snapshot. Resolution is pure and performs no I/O; callers refresh the
// snapshot through the SnapshotProvider.
package rbac

import (
	"time"

	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
)

// Resolution sources, in precedence order
const (
	SourceAdminPermission = "admin_permission"
	SourceRoleOverride    = "role_override"
	SourceTierOverride    = "tier_override"
	SourceDefault         = "default"
	SourceFallback        = "fallback"
)

// rolePriority orders roles for override resolution. The creator role
// outranks admin; unlisted roles are checked in the order the caller
// supplies them.
var rolePriority = []string{models.RoleCreator, models.RoleAdmin}

// Snapshot is an immutable view of the capability and tier configuration,
// taken at FetchedAt. It is shared across goroutines and never mutated.
type Snapshot struct {
	Capabilities models.CapabilityConfig
	Tiers        models.TierConfig
	FetchedAt    time.Time
}

// EmptySnapshot is used when no configuration has ever been loaded; every
// resolution degrades to the caller's fallback.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Capabilities: models.CapabilityConfig{},
		Tiers:        models.TierConfig{},
	}
}

// Resolve returns the effective value of a capability for a user.
// Precedence: an admin-permission flag named after the capability, then a
// role-specific override (creator before admin before other roles), then a
// tier-scoped override, then the capability's default, then the caller's
// fallback. Never errors: missing configuration degrades to fallback.
func (s *Snapshot) Resolve(key, tier string, roles []string, adminPermissions map[string]any, fallback any) any {
	value, source := s.resolve(key, tier, roles, adminPermissions, fallback)
	monitoring.RecordCapabilityResolution(source)
	return value
}

func (s *Snapshot) resolve(key, tier string, roles []string, adminPermissions map[string]any, fallback any) (any, string) {
	if v, ok := adminPermissions[key]; ok {
		return v, SourceAdminPermission
	}

	capability, ok := s.Capabilities[key]
	if !ok {
		return fallback, SourceFallback
	}

	for _, role := range orderRoles(roles) {
		if v, ok := capability.Roles[role]; ok {
			return v, SourceRoleOverride
		}
	}

	if v, ok := capability.Roles[tier]; ok {
		return v, SourceTierOverride
	}

	if capability.Default != nil {
		return capability.Default, SourceDefault
	}
	return fallback, SourceFallback
}

// ResolveBool resolves a capability and coerces the result to a boolean.
// Non-boolean values degrade to the fallback.
func (s *Snapshot) ResolveBool(key, tier string, roles []string, adminPermissions map[string]any, fallback bool) bool {
	v := s.Resolve(key, tier, roles, adminPermissions, fallback)
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

// ResolveInt resolves a capability and coerces the result to an int64.
// JSON-decoded numbers arrive as float64.
func (s *Snapshot) ResolveInt(key, tier string, roles []string, adminPermissions map[string]any, fallback int64) int64 {
	v := s.Resolve(key, tier, roles, adminPermissions, fallback)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return fallback
	}
}

// TierLevel returns the numeric level of a tier, or 0 when unknown
func (s *Snapshot) TierLevel(tier string) uint {
	return s.Tiers[tier].Level
}

// TierAtLeast reports whether tier a outranks or equals tier b
func (s *Snapshot) TierAtLeast(a, b string) bool {
	return s.TierLevel(a) >= s.TierLevel(b)
}

// orderRoles puts priority roles first, preserving caller order for the rest
func orderRoles(roles []string) []string {
	if len(roles) <= 1 {
		return roles
	}
	ordered := make([]string, 0, len(roles))
	seen := make(map[string]bool, len(roles))
	for _, p := range rolePriority {
		for _, r := range roles {
			if r == p && !seen[r] {
				ordered = append(ordered, r)
				seen[r] = true
			}
		}
	}
	for _, r := range roles {
		if !seen[r] {
			ordered = append(ordered, r)
			seen[r] = true
		}
	}
	return ordered
}
