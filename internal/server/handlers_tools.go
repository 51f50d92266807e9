package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/middleware"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/registry"
)

// toolCapabilityKey names the capability gating a tool. Tools with no
// capability entry default to enabled; administrators disable a tool by
// defining its key with a false default.
func toolCapabilityKey(toolID string) string {
	return "tool_" + toolID + "_enabled"
}

func (s *APIServer) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.deps.Registry.List()})
}

// handleCheckTool reports whether the caller could invoke a tool right now:
// the capability gate first, then the quota chain for metered tools. Pure
// read, no counters move.
func (s *APIServer) handleCheckTool(c *gin.Context) {
	_, _, decision, err := s.gateTool(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// handleConsumeTool performs the check and, on allow, records one call
// against the tool's metering API. The increment is fire-and-forget.
func (s *APIServer) handleConsumeTool(c *gin.Context) {
	tool, profile, decision, err := s.gateTool(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if !decision.Allowed {
		respondError(c, apierrors.NewQuotaExceededError(decision.Reason))
		return
	}

	if tool.APIID != "" {
		s.deps.Ledger.Increment(c.Request.Context(), profile.UserID, tool.APIID)
	}
	c.JSON(http.StatusOK, gin.H{"consumed": true})
}

// gateTool resolves the tool, applies the capability gate and runs the
// quota check for metered tools. Unknown tools 404; a disabled capability
// 403s before any quota work.
func (s *APIServer) gateTool(c *gin.Context) (registry.Tool, *models.UserProfile, quota.Decision, error) {
	toolID := c.Param("tool_id")
	tool, ok := s.deps.Registry.Lookup(toolID)
	if !ok {
		return registry.Tool{}, nil, quota.Decision{}, apierrors.ErrToolNotFoundError
	}

	profile := middleware.ProfileFromContext(c)
	snapshot := s.deps.Snapshots.Current(c.Request.Context())
	enabled := snapshot.ResolveBool(toolCapabilityKey(toolID), profile.Tier, profile.Roles, profile.AdminPermissions, true)
	if !enabled {
		return tool, profile, quota.Decision{}, apierrors.NewForbiddenError("Tool is not available on your plan")
	}

	if tool.APIID == "" {
		return tool, profile, quota.Decision{Allowed: true}, nil
	}

	decision, err := s.deps.Quota.CheckLimit(c.Request.Context(), profile, tool.APIID)
	if err != nil {
		return tool, profile, quota.Decision{}, apierrors.ErrStoreUnavailableError
	}
	return tool, profile, decision, nil
}
