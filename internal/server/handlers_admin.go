package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimerfeng/TierLink/internal/middleware"
	"github.com/aimerfeng/TierLink/internal/models"
)

func (s *APIServer) handleListUsers(c *gin.Context) {
	profiles, err := s.deps.Admin.ListUserProfiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}

func (s *APIServer) handleGetUser(c *gin.Context) {
	profile, err := s.deps.Admin.GetUserProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *APIServer) handleUpdateUser(c *gin.Context) {
	var update models.UserProfileUpdate
	if !bindJSON(c, &update) {
		return
	}

	profile, err := s.deps.Admin.UpdateUserProfile(c.Request.Context(), c.Param("user_id"), update, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *APIServer) handleUpdateUserStatus(c *gin.Context) {
	var body struct {
		Status models.UserStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	profile, err := s.deps.Admin.UpdateUserStatus(c.Request.Context(), c.Param("user_id"), body.Status, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *APIServer) handlePurgeUserSessions(c *gin.Context) {
	err := s.deps.Admin.PurgeUserSessions(c.Request.Context(), c.Param("user_id"), middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": true})
}

func (s *APIServer) handlePurgeAllSessions(c *gin.Context) {
	result, err := s.deps.Admin.PurgeAllSessions(c.Request.Context(), middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *APIServer) handleGrantAdminAccess(c *gin.Context) {
	var body struct {
		Permissions map[string]any `json:"permissions" binding:"required"`
		ReplaceAll  bool           `json:"replace_all"`
	}
	if !bindJSON(c, &body) {
		return
	}

	profile, err := s.deps.Admin.GrantAdminAccess(c.Request.Context(), c.Param("user_id"), body.Permissions, body.ReplaceAll, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *APIServer) handleSetUserApiOverrides(c *gin.Context) {
	var update models.UserApiConfigUpdate
	if !bindJSON(c, &update) {
		return
	}

	cfg, err := s.deps.UserApis.SetOverrides(c.Request.Context(), c.Param("user_id"), c.Param("api_id"), update, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *APIServer) handleGetCapabilities(c *gin.Context) {
	capabilities, err := s.deps.Admin.GetCapabilities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": capabilities})
}

func (s *APIServer) handleReplaceCapabilities(c *gin.Context) {
	var body struct {
		Capabilities models.CapabilityConfig `json:"capabilities" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	if err := s.deps.Admin.ReplaceCapabilities(c.Request.Context(), body.Capabilities, middleware.ProfileFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": body.Capabilities})
}

func (s *APIServer) handleSetCapability(c *gin.Context) {
	var capability models.Capability
	if !bindJSON(c, &capability) {
		return
	}

	capabilities, err := s.deps.Admin.SetCapability(c.Request.Context(), c.Param("key"), capability, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": capabilities})
}

func (s *APIServer) handleGetTiers(c *gin.Context) {
	tiers, err := s.deps.Admin.GetTierHierarchy(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (s *APIServer) handleUpdateTiers(c *gin.Context) {
	var body struct {
		Tiers models.TierConfig `json:"tiers" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	if err := s.deps.Admin.UpdateTierHierarchy(c.Request.Context(), body.Tiers, middleware.ProfileFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": body.Tiers})
}

func (s *APIServer) handleGetApiLimits(c *gin.Context) {
	limits, err := s.deps.Admin.GetApiLimits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": limits})
}

func (s *APIServer) handleUpdateApiLimits(c *gin.Context) {
	var body struct {
		MonthlyCalls *int64 `json:"monthly_calls"`
		DailyCalls   *int64 `json:"daily_calls"`
		Replace      bool   `json:"replace"`
	}
	if !bindJSON(c, &body) {
		return
	}

	update := models.TierLimitsUpdate{
		MonthlyCalls: body.MonthlyCalls,
		DailyCalls:   body.DailyCalls,
	}
	limits, err := s.deps.Admin.UpdateApiLimits(c.Request.Context(), c.Param("tier"), update, body.Replace, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": limits})
}

func (s *APIServer) handleCreateGlobalApi(c *gin.Context) {
	var cfg models.GlobalApiConfig
	if !bindJSON(c, &cfg) {
		return
	}

	created, err := s.deps.Admin.CreateGlobalApi(c.Request.Context(), cfg, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *APIServer) handleListGlobalApis(c *gin.Context) {
	configs, err := s.deps.Admin.ListGlobalApis(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apis": configs})
}

func (s *APIServer) handleGetGlobalApi(c *gin.Context) {
	cfg, err := s.deps.Admin.GetGlobalApi(c.Request.Context(), c.Param("api_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *APIServer) handleUpdateGlobalApi(c *gin.Context) {
	var update models.GlobalApiConfigUpdate
	if !bindJSON(c, &update) {
		return
	}

	cfg, err := s.deps.Admin.UpdateGlobalApi(c.Request.Context(), c.Param("api_id"), update, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *APIServer) handleDeleteGlobalApi(c *gin.Context) {
	if err := s.deps.Admin.DeleteGlobalApi(c.Request.Context(), c.Param("api_id"), middleware.ProfileFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *APIServer) handleRunAdjustments(c *gin.Context) {
	if err := s.deps.Scheduler.RunNow(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Scheduler.GetStatus())
}

func (s *APIServer) handleAdjustmentStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Scheduler.GetStatus())
}
