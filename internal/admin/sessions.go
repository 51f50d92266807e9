package admin

import (
	"context"

	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// PurgeResult summarizes a bulk session purge
type PurgeResult struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// PurgeUserSessions revokes one user's sessions. Gated on creator or the
// can_purge_user_sessions permission. Unlike incidental revocations this is
// the operation's whole point, so a provider failure is returned.
func (s *Service) PurgeUserSessions(ctx context.Context, targetID string, actor *models.UserProfile) error {
	if err := requirePermission(actor, PermPurgeUserSessions); err != nil {
		return err
	}
	if _, err := s.GetUserProfile(ctx, targetID); err != nil {
		return err
	}

	err := s.identity.RevokeSessions(ctx, targetID)
	logging.LogSessionRevocation(targetID, err)
	return err
}

// PurgeAllSessions revokes every user's sessions, walking the profile
// collection in bounded batches so the pass never holds the full user set
// in memory. Creator-only. Per-user failures are counted and logged; the
// pass continues.
func (s *Service) PurgeAllSessions(ctx context.Context, actor *models.UserProfile) (*PurgeResult, error) {
	if err := requireCreator(actor); err != nil {
		return nil, err
	}

	result := &PurgeResult{}
	afterID := ""
	for {
		ids, err := s.store.ListGlobalIDs(ctx, store.CollectionUserProfiles, afterID, s.purgeBatchSize)
		if err != nil {
			return result, err
		}
		if len(ids) == 0 {
			break
		}

		for _, userID := range ids {
			result.Total++
			if err := s.identity.RevokeSessions(ctx, userID); err != nil {
				result.Failed++
				logging.LogSessionRevocation(userID, err)
			}
		}
		afterID = ids[len(ids)-1]
	}

	s.logger.Info().Int("total", result.Total).Int("failed", result.Failed).Msg("Bulk session purge finished")
	return result, nil
}
