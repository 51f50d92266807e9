package admin

import (
	"context"
	"encoding/json"
	"errors"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// ListUserProfiles returns every stored user profile
func (s *Service) ListUserProfiles(ctx context.Context) ([]models.UserProfile, error) {
	docs, err := s.store.ListGlobal(ctx, store.CollectionUserProfiles)
	if err != nil {
		return nil, err
	}

	profiles := make([]models.UserProfile, 0, len(docs))
	for id, raw := range docs {
		var profile models.UserProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			s.logger.Warn().Err(err).Str("user_id", id).Msg("Skipping undecodable user profile")
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// GetUserProfile fetches one user profile
func (s *Service) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := store.GetGlobalAs(ctx, s.store, store.CollectionUserProfiles, userID, &profile)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierrors.ErrUserNotFoundError
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateUserProfile applies a partial profile update on behalf of an admin.
// Creators bypass the granular checks; other admins need the matching
// can_manage_tier_<tier>, can_assign_role_<role> or can_change_user_status
// permission for each field they touch. Tier and role changes propagate to
// the identity provider's claims and force re-authentication.
func (s *Service) UpdateUserProfile(ctx context.Context, targetID string, update models.UserProfileUpdate, actor *models.UserProfile) (*models.UserProfile, error) {
	profile, err := s.GetUserProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeProfileUpdate(update, actor); err != nil {
		return nil, err
	}

	claimsChanged := false
	revoke := false

	if update.Username != nil {
		profile.Username = *update.Username
	}
	if update.Tier != nil && *update.Tier != profile.Tier {
		profile.Tier = *update.Tier
		claimsChanged = true
		revoke = true
	}
	if update.Roles != nil {
		profile.Roles = update.Roles
		claimsChanged = true
		revoke = true
	}
	if update.Status != nil && *update.Status != profile.Status {
		profile.Status = *update.Status
		claimsChanged = true
		if *update.Status == models.UserStatusDisabled || *update.Status == models.UserStatusSuspended {
			revoke = true
		}
	}

	if err := s.store.SetGlobal(ctx, store.CollectionUserProfiles, targetID, profile); err != nil {
		return nil, err
	}

	// Claim and revocation propagation is not transactional with the store
	// write. Failures are logged; the profile update already succeeded.
	if claimsChanged {
		s.propagateClaims(ctx, profile)
	}
	if revoke {
		err := s.identity.RevokeSessions(ctx, targetID)
		logging.LogSessionRevocation(targetID, err)
	}

	return profile, nil
}

// UpdateUserStatus changes one user's account status
func (s *Service) UpdateUserStatus(ctx context.Context, targetID string, status models.UserStatus, actor *models.UserProfile) (*models.UserProfile, error) {
	switch status {
	case models.UserStatusActive, models.UserStatusDisabled, models.UserStatusSuspended:
	default:
		return nil, apierrors.NewValidationError(map[string]string{"status": "unknown status"})
	}
	return s.UpdateUserProfile(ctx, targetID, models.UserProfileUpdate{Status: &status}, actor)
}

// GrantAdminAccess grants or replaces a user's granular admin permissions.
// Creator-only. Granting any can_* permission also adds the admin role.
// The new permissions are mirrored into the identity provider's custom
// claims and the user's sessions are revoked so they take effect.
func (s *Service) GrantAdminAccess(ctx context.Context, targetID string, permissions map[string]any, replaceAll bool, actor *models.UserProfile) (*models.UserProfile, error) {
	if err := requireCreator(actor); err != nil {
		return nil, err
	}

	profile, err := s.GetUserProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if replaceAll || profile.AdminPermissions == nil {
		profile.AdminPermissions = map[string]any{}
	}
	for key, value := range permissions {
		profile.AdminPermissions[key] = value
	}

	if hasAdminGrant(profile.AdminPermissions) && !profile.HasRole(models.RoleAdmin) {
		profile.Roles = append(profile.Roles, models.RoleAdmin)
	}

	if err := s.store.SetGlobal(ctx, store.CollectionUserProfiles, targetID, profile); err != nil {
		return nil, err
	}

	s.propagateClaims(ctx, profile)
	revErr := s.identity.RevokeSessions(ctx, targetID)
	logging.LogSessionRevocation(targetID, revErr)

	return profile, nil
}

func (s *Service) authorizeProfileUpdate(update models.UserProfileUpdate, actor *models.UserProfile) error {
	if actor.IsCreator() {
		return nil
	}

	if update.Tier != nil {
		if err := requirePermission(actor, PermManageTierPrefix+*update.Tier); err != nil {
			return err
		}
	}
	for _, role := range update.Roles {
		if err := requirePermission(actor, PermAssignRolePrefix+role); err != nil {
			return err
		}
	}
	if update.Status != nil {
		if err := requirePermission(actor, PermChangeUserStatus); err != nil {
			return err
		}
	}
	return nil
}

// propagateClaims mirrors the profile's gating state into session claims
func (s *Service) propagateClaims(ctx context.Context, profile *models.UserProfile) {
	claims := map[string]any{
		"tier":              profile.Tier,
		"roles":             profile.Roles,
		"status":            string(profile.Status),
		"admin_permissions": profile.AdminPermissions,
	}
	if err := s.identity.SetCustomClaims(ctx, profile.UserID, claims); err != nil {
		s.logger.Warn().Err(err).Str("user_id", profile.UserID).Msg("Failed to propagate claims to identity provider")
	}
}

// hasAdminGrant reports whether any granular can_* permission is truthy
func hasAdminGrant(permissions map[string]any) bool {
	for key, value := range permissions {
		if len(key) > len(adminPermissionPrefix) && key[:len(adminPermissionPrefix)] == adminPermissionPrefix {
			if b, ok := value.(bool); ok && b {
				return true
			}
		}
	}
	return false
}
