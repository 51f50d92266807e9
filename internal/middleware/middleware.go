// Package middleware carries the gin middleware chain: request IDs, CORS,
// token authentication against the identity provider, profile loading and
// role/permission guards.
package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/identity"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/store"
)

// Context keys for authenticated request state
const (
	ContextKeyUserID  = "user_id"
	ContextKeyProfile = "profile"
)

// Auth validates the bearer token with the identity provider, loads the
// caller's profile from the store and rejects disabled accounts.
func Auth(provider identity.Provider, s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, apierrors.ErrInvalidCredentialsError)
			return
		}

		id, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrTokenExpired):
				abortWithError(c, apierrors.ErrTokenExpiredError)
			case errors.Is(err, identity.ErrTokenRevoked):
				abortWithError(c, apierrors.ErrSessionRevokedError)
			default:
				abortWithError(c, apierrors.ErrInvalidCredentialsError)
			}
			return
		}

		var profile models.UserProfile
		err = store.GetGlobalAs(c.Request.Context(), s, store.CollectionUserProfiles, id.UID, &profile)
		if errors.Is(err, store.ErrNotFound) {
			abortWithError(c, apierrors.ErrUserNotFoundError)
			return
		}
		if err != nil {
			abortWithError(c, apierrors.ErrStoreUnavailableError)
			return
		}

		if profile.Status != models.UserStatusActive {
			abortWithError(c, apierrors.ErrAccountDisabledError)
			return
		}

		c.Set(ContextKeyUserID, id.UID)
		c.Set(ContextKeyProfile, &profile)
		c.Next()
	}
}

// RequireRole allows the request through when the caller holds any of the
// given roles. Must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := ProfileFromContext(c)
		if profile == nil {
			abortWithError(c, apierrors.ErrForbiddenError)
			return
		}

		for _, role := range roles {
			if profile.HasRole(role) {
				c.Next()
				return
			}
		}
		abortWithError(c, apierrors.NewForbiddenError(fmt.Sprintf("Access denied. Required role: %v", roles)))
	}
}

// RequireAdmin requires the admin or creator role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleCreator)
}

// RequireCreator requires the creator role
func RequireCreator() gin.HandlerFunc {
	return RequireRole(models.RoleCreator)
}

// RequirePermission allows creators through unconditionally, otherwise
// demands the named admin permission. Must run after Auth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := ProfileFromContext(c)
		if profile == nil {
			abortWithError(c, apierrors.ErrForbiddenError)
			return
		}
		if profile.IsCreator() || profile.Permission(permission) {
			c.Next()
			return
		}
		abortWithError(c, apierrors.NewForbiddenError(fmt.Sprintf("Permission %s required", permission)))
	}
}

// ProfileFromContext returns the authenticated caller's profile, or nil
func ProfileFromContext(c *gin.Context) *models.UserProfile {
	v, exists := c.Get(ContextKeyProfile)
	if !exists {
		return nil
	}
	profile, _ := v.(*models.UserProfile)
	return profile
}

// UserIDFromContext returns the authenticated caller's user id
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// RequestID assigns each request a unique id, honoring one from upstream
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORS configures CORS headers for browser clients
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// extractBearerToken pulls the token out of an Authorization header
func extractBearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", identity.ErrInvalidToken
	}
	return header[len(prefix):], nil
}

// abortWithError sends a standardized error response and stops the chain
func abortWithError(c *gin.Context, err *apierrors.APIError) {
	c.AbortWithStatusJSON(err.HTTPStatus, apierrors.ErrorResponse{
		Error:     *err,
		RequestID: c.GetString("request_id"),
	})
}
