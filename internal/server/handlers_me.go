package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimerfeng/TierLink/internal/middleware"
	"github.com/aimerfeng/TierLink/internal/models"
)

func (s *APIServer) handleGetOwnProfile(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.ProfileFromContext(c))
}

func (s *APIServer) handleListOwnApis(c *gin.Context) {
	configs, err := s.deps.UserApis.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apis": configs})
}

func (s *APIServer) handleCreateOwnApi(c *gin.Context) {
	var cfg models.UserApiConfig
	if !bindJSON(c, &cfg) {
		return
	}

	created, err := s.deps.UserApis.Create(c.Request.Context(), middleware.UserIDFromContext(c), cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *APIServer) handleGetOwnApi(c *gin.Context) {
	cfg, err := s.deps.UserApis.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("api_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *APIServer) handleUpdateOwnApi(c *gin.Context) {
	var update models.UserApiConfigUpdate
	if !bindJSON(c, &update) {
		return
	}

	cfg, err := s.deps.UserApis.Update(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("api_id"), update, middleware.ProfileFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *APIServer) handleDeleteOwnApi(c *gin.Context) {
	if err := s.deps.UserApis.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("api_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *APIServer) handleGetOwnUsage(c *gin.Context) {
	record, err := s.deps.Ledger.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("api_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
