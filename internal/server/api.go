// Package server is the thin HTTP surface over the core subsystems: admin
// operations, per-user API config management and the metered tool gate.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimerfeng/TierLink/internal/adjust"
	"github.com/aimerfeng/TierLink/internal/admin"
	"github.com/aimerfeng/TierLink/internal/config"
	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/identity"
	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/middleware"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/rbac"
	"github.com/aimerfeng/TierLink/internal/registry"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
	"github.com/aimerfeng/TierLink/internal/userapi"
)

// Deps carries the wired core services the server exposes
type Deps struct {
	Store     store.Store
	Identity  identity.Provider
	Snapshots *rbac.SnapshotProvider
	Ledger    *usage.Ledger
	Quota     *quota.Engine
	Admin     *admin.Service
	UserApis  *userapi.Service
	Registry  *registry.Registry
	Scheduler *adjust.Scheduler
}

// APIServer is the main HTTP server
type APIServer struct {
	config *config.Config
	router *gin.Engine
	deps   Deps
}

// NewAPIServer creates the API server and wires its routes
func NewAPIServer(cfg *config.Config, deps Deps) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config: cfg,
		router: router,
		deps:   deps,
	}
	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	auth := middleware.Auth(s.deps.Identity, s.deps.Store)

	v1 := s.router.Group("/api/v1")
	{
		adminGroup := v1.Group("/admin")
		adminGroup.Use(auth)
		adminGroup.Use(middleware.RequireAdmin())
		{
			adminGroup.GET("/users", s.handleListUsers)
			adminGroup.GET("/users/:user_id", s.handleGetUser)
			adminGroup.PATCH("/users/:user_id", s.handleUpdateUser)
			adminGroup.PUT("/users/:user_id/status", s.handleUpdateUserStatus)
			adminGroup.POST("/users/:user_id/sessions/purge", s.handlePurgeUserSessions)
			adminGroup.POST("/users/:user_id/grant-access", s.handleGrantAdminAccess)
			adminGroup.POST("/sessions/purge-all", s.handlePurgeAllSessions)
			adminGroup.PUT("/users/:user_id/apis/:api_id/overrides", s.handleSetUserApiOverrides)

			adminGroup.GET("/config/capabilities", s.handleGetCapabilities)
			adminGroup.PUT("/config/capabilities", s.handleReplaceCapabilities)
			adminGroup.PUT("/config/capabilities/:key", s.handleSetCapability)
			adminGroup.GET("/config/tiers", s.handleGetTiers)
			adminGroup.PUT("/config/tiers", s.handleUpdateTiers)
			adminGroup.GET("/config/api-limits", s.handleGetApiLimits)
			adminGroup.PUT("/config/api-limits/:tier", s.handleUpdateApiLimits)

			adminGroup.POST("/apis", s.handleCreateGlobalApi)
			adminGroup.GET("/apis", s.handleListGlobalApis)
			adminGroup.GET("/apis/:api_id", s.handleGetGlobalApi)
			adminGroup.PATCH("/apis/:api_id", s.handleUpdateGlobalApi)
			adminGroup.DELETE("/apis/:api_id", s.handleDeleteGlobalApi)

			adminGroup.POST("/adjustments/run", s.handleRunAdjustments)
			adminGroup.GET("/adjustments/status", s.handleAdjustmentStatus)
		}

		me := v1.Group("/me")
		me.Use(auth)
		{
			me.GET("", s.handleGetOwnProfile)
			me.GET("/apis", s.handleListOwnApis)
			me.POST("/apis", s.handleCreateOwnApi)
			me.GET("/apis/:api_id", s.handleGetOwnApi)
			me.PATCH("/apis/:api_id", s.handleUpdateOwnApi)
			me.DELETE("/apis/:api_id", s.handleDeleteOwnApi)
			me.GET("/usage/:api_id", s.handleGetOwnUsage)
		}

		tools := v1.Group("/tools")
		tools.Use(auth)
		{
			tools.GET("", s.handleListTools)
			tools.POST("/:tool_id/check", s.handleCheckTool)
			tools.POST("/:tool_id/consume", s.handleConsumeTool)
		}
	}
}

func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps service errors onto the standard error envelope
func respondError(c *gin.Context, err error) {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		logger := logging.NewLogger("server")
		logger.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled service error")
		apiErr = apierrors.ErrInternalServerError
	}
	c.JSON(apiErr.HTTPStatus, apierrors.ErrorResponse{
		Error:     *apiErr,
		RequestID: c.GetString("request_id"),
	})
}

// bindJSON decodes the request body, responding with a validation error on failure
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return false
	}
	return true
}
