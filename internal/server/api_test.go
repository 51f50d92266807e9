package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimerfeng/TierLink/internal/adjust"
	"github.com/aimerfeng/TierLink/internal/admin"
	"github.com/aimerfeng/TierLink/internal/config"
	"github.com/aimerfeng/TierLink/internal/identity"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/rbac"
	"github.com/aimerfeng/TierLink/internal/registry"
	"github.com/aimerfeng/TierLink/internal/server"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
	"github.com/aimerfeng/TierLink/internal/userapi"
)

type testEnv struct {
	server   *server.APIServer
	store    *store.MemoryStore
	provider *identity.MemoryProvider
	limits   *quota.LimitsService
	registry *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := store.NewMemoryStore()
	provider := identity.NewMemoryProvider()
	snapshots := rbac.NewSnapshotProvider(s, nil, time.Hour)
	ledger := usage.NewLedger(usage.NewMemoryRepository())
	limits := quota.NewLimitsService(s)
	engine := quota.NewEngine(s, ledger, limits)
	aggregator := adjust.NewAggregator(s, ledger, limits)
	scheduler := adjust.NewScheduler(aggregator, time.Hour)
	adminService := admin.NewService(s, provider, snapshots, limits, 10)
	tools := registry.New()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	srv := server.NewAPIServer(cfg, server.Deps{
		Store:     s,
		Identity:  provider,
		Snapshots: snapshots,
		Ledger:    ledger,
		Quota:     engine,
		Admin:     adminService,
		UserApis:  userapi.NewService(s),
		Registry:  tools,
		Scheduler: scheduler,
	})

	return &testEnv{
		server:   srv,
		store:    s,
		provider: provider,
		limits:   limits,
		registry: tools,
	}
}

func (e *testEnv) seedUser(t *testing.T, profile models.UserProfile, token string) {
	t.Helper()
	if profile.Status == "" {
		profile.Status = models.UserStatusActive
	}
	require.NoError(t, e.store.SetGlobal(context.Background(), store.CollectionUserProfiles, profile.UserID, profile))
	e.provider.AddToken(token, profile.UserID, nil)
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Reason string `json:"reason"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "40101", errorCode(t, w))
}

func TestAuth_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}, Status: models.UserStatusDisabled}, "tok-u1")

	w := env.do(t, http.MethodGet, "/api/v1/me", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "40302", errorCode(t, w))
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")
	env.seedUser(t, models.UserProfile{UserID: "a1", Tier: "free", Roles: []string{"admin"}}, "tok-a1")

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/users", "tok-a1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTools_UnknownTool(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")

	w := env.do(t, http.MethodPost, "/api/v1/tools/ghost/check", "tok-u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "40403", errorCode(t, w))
}

func TestTools_ConsumeExhaustsDailyQuota(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")
	require.NoError(t, env.registry.Register(registry.Tool{ID: "weather", APIID: "api-weather"}))

	monthly, daily := int64(10), int64(3)
	_, err := env.limits.UpdateLimits(context.Background(), "free", models.TierLimitsUpdate{
		MonthlyCalls: &monthly,
		DailyCalls:   &daily,
	}, true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
		require.Equal(t, http.StatusOK, w.Code, "call %d should be within quota", i+1)
	}

	w := env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "40310", errorCode(t, w), "quota exhaustion is distinguishable from forbidden")
}

func TestTools_CheckDoesNotConsume(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")
	require.NoError(t, env.registry.Register(registry.Tool{ID: "weather", APIID: "api-weather"}))

	monthly, daily := int64(10), int64(1)
	_, err := env.limits.UpdateLimits(context.Background(), "free", models.TierLimitsUpdate{
		MonthlyCalls: &monthly,
		DailyCalls:   &daily,
	}, true)
	require.NoError(t, err)

	// Checks never move counters; the single daily call stays available
	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/tools/weather/check", "tok-u1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var decision struct {
			Allowed bool `json:"allowed"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.True(t, decision.Allowed)
	}

	w := env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTools_CapabilityGate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")
	env.seedUser(t, models.UserProfile{UserID: "c1", Tier: "max", Roles: []string{"creator"}}, "tok-c1")
	require.NoError(t, env.registry.Register(registry.Tool{ID: "export", APIID: ""}))

	// Disable the tool by default, enable for the creator role
	doc := map[string]any{"capabilities": map[string]any{
		"tool_export_enabled": map[string]any{
			"default": false,
			"roles":   map[string]any{"creator": true},
		},
	}}
	require.NoError(t, env.store.SetGlobal(context.Background(), store.CollectionGlobalConfig, store.DocRbacCapabilities, doc))

	w := env.do(t, http.MethodPost, "/api/v1/tools/export/check", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "40301", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/tools/export/check", "tok-c1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMeApis_CRUDAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")

	w := env.do(t, http.MethodPost, "/api/v1/me/apis", "tok-u1", `{"name":"my-api","user_defined_limit_monthly":100}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.UserApiConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// Non-creators cannot set override fields
	w = env.do(t, http.MethodPatch, "/api/v1/me/apis/"+created.ID, "tok-u1", `{"creator_override_unlimited":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/me/apis/"+created.ID, "tok-u1", `{"user_defined_limit_daily":5}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/me/apis/"+created.ID, "tok-u1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/me/apis/"+created.ID, "tok-u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminOverrides_BeatTierLimits(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")
	env.seedUser(t, models.UserProfile{UserID: "c1", Tier: "max", Roles: []string{"creator"}}, "tok-c1")
	require.NoError(t, env.registry.Register(registry.Tool{ID: "weather", APIID: "api-weather"}))

	monthly, daily := int64(0), int64(0)
	_, err := env.limits.UpdateLimits(context.Background(), "free", models.TierLimitsUpdate{
		MonthlyCalls: &monthly,
		DailyCalls:   &daily,
	}, true)
	require.NoError(t, err)

	// Zero tier limits deny outright
	w := env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	// An admin without the creator role cannot set overrides
	env.seedUser(t, models.UserProfile{UserID: "a1", Tier: "free", Roles: []string{"admin"}}, "tok-a1")
	w = env.do(t, http.MethodPut, "/api/v1/admin/users/u1/apis/api-weather/overrides", "tok-a1", `{"creator_override_monthly":2}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/admin/users/u1/apis/api-weather/overrides", "tok-c1", `{"creator_override_monthly":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The override is authoritative over the zeroed tier limits
	for i := 0; i < 2; i++ {
		w = env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/tools/weather/consume", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "40310", errorCode(t, w))
}

func TestMeUsage(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, models.UserProfile{UserID: "u1", Tier: "free", Roles: []string{"user"}}, "tok-u1")

	w := env.do(t, http.MethodGet, "/api/v1/me/usage/api-weather", "tok-u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var record models.UsageRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, int64(0), record.MonthlyUsage)
}
