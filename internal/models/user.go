package models

import (
	"time"
)

// UserStatus represents the state of a user account
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusDisabled  UserStatus = "disabled"
	UserStatusSuspended UserStatus = "suspended"
)

// Well-known roles
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleCreator = "creator"
)

// DefaultTier is assigned to users without an explicit subscription tier
const DefaultTier = "free"

// UserProfile represents a user in the system
type UserProfile struct {
	UserID           string         `json:"user_id"`
	Username         string         `json:"username"`
	Email            string         `json:"email"`
	Tier             string         `json:"tier"`
	Roles            []string       `json:"roles"`
	Status           UserStatus     `json:"status"`
	AdminPermissions map[string]any `json:"admin_permissions,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastLoginAt      *time.Time     `json:"last_login_at,omitempty"`
}

// HasRole reports whether the user holds the given role
func (u *UserProfile) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsCreator reports whether the user holds the creator role
func (u *UserProfile) IsCreator() bool {
	return u.HasRole(RoleCreator)
}

// Permission returns the boolean value of an admin permission flag.
// Missing or non-boolean values read as false.
func (u *UserProfile) Permission(key string) bool {
	v, ok := u.AdminPermissions[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// UserProfileUpdate carries a partial profile update performed by an admin
type UserProfileUpdate struct {
	Username *string     `json:"username,omitempty"`
	Tier     *string     `json:"tier,omitempty"`
	Roles    []string    `json:"roles,omitempty"`
	Status   *UserStatus `json:"status,omitempty"`
}
