// Package admin implements the administrative operations over user
// profiles, capability and tier configuration, global API integrations and
// session lifecycle. Every mutating operation is gated on the acting
// user's role or granular admin permissions.
package admin

import (
	"fmt"

	"github.com/rs/zerolog"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/identity"
	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/rbac"
	"github.com/aimerfeng/TierLink/internal/store"
)

// Granular admin permission keys. Tier and role management permissions are
// suffixed with the tier or role they govern.
const (
	PermManageTierPrefix  = "can_manage_tier_"
	PermAssignRolePrefix  = "can_assign_role_"
	PermChangeUserStatus  = "can_change_user_status"
	PermPurgeUserSessions = "can_purge_user_sessions"
	PermManageGlobalApis  = "can_manage_global_apis"
	PermManageApiLimits   = "can_manage_api_limits"
	adminPermissionPrefix = "can_"
)

// Service carries out administrative operations
type Service struct {
	store          store.Store
	identity       identity.Provider
	snapshots      *rbac.SnapshotProvider
	limits         *quota.LimitsService
	purgeBatchSize int
	logger         zerolog.Logger
}

// NewService creates an admin service
func NewService(s store.Store, provider identity.Provider, snapshots *rbac.SnapshotProvider, limits *quota.LimitsService, purgeBatchSize int) *Service {
	return &Service{
		store:          s,
		identity:       provider,
		snapshots:      snapshots,
		limits:         limits,
		purgeBatchSize: purgeBatchSize,
		logger:         logging.NewLogger("admin"),
	}
}

// requireCreator gates creator-only operations
func requireCreator(actor *models.UserProfile) error {
	if !actor.IsCreator() {
		return apierrors.NewForbiddenError("Creator role required")
	}
	return nil
}

// requirePermission allows creators unconditionally, otherwise demands the
// named granular permission.
func requirePermission(actor *models.UserProfile, permission string) error {
	if actor.IsCreator() || actor.Permission(permission) {
		return nil
	}
	return apierrors.NewForbiddenError(fmt.Sprintf("Permission %s required", permission))
}
