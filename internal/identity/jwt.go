package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/TierLink/internal/config"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	sessionVersionKeyPrefix = "session_ver:"
	customClaimsKeyPrefix   = "claims:"
)

// Claims are the JWT claims carried by TierLink access tokens
type Claims struct {
	UID            string         `json:"uid"`
	SessionVersion int64          `json:"ver"`
	Custom         map[string]any `json:"custom,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider implements Provider with HS256 tokens and Redis-backed
// session versioning. Revocation bumps the stored version; tokens minted
// before the bump fail verification.
type JWTProvider struct {
	secret []byte
	expiry time.Duration
	redis  *redis.Client
}

// NewJWTProvider creates a JWT-based identity provider
func NewJWTProvider(cfg *config.JWTConfig, redisClient *redis.Client) *JWTProvider {
	return &JWTProvider{
		secret: []byte(cfg.Secret),
		expiry: time.Duration(cfg.AccessTokenExpiry) * time.Minute,
		redis:  redisClient,
	}
}

// IssueToken mints an access token for the user, embedding the current
// session version and custom claims.
func (p *JWTProvider) IssueToken(ctx context.Context, uid string) (string, error) {
	version, err := p.sessionVersion(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("failed to load session version: %w", err)
	}

	custom, err := p.customClaims(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("failed to load custom claims: %w", err)
	}

	now := time.Now()
	claims := &Claims{
		UID:            uid,
		SessionVersion: version,
		Custom:         custom,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *JWTProvider) VerifyToken(ctx context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	version, err := p.sessionVersion(ctx, claims.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session version: %w", err)
	}
	if claims.SessionVersion != version {
		return nil, ErrTokenRevoked
	}

	return &Identity{UID: claims.UID, Claims: claims.Custom}, nil
}

func (p *JWTProvider) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims for %s: %w", uid, err)
	}
	if err := p.redis.Set(ctx, customClaimsKeyPrefix+uid, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store claims for %s: %w", uid, err)
	}
	return nil
}

func (p *JWTProvider) RevokeSessions(ctx context.Context, uid string) error {
	err := p.redis.Incr(ctx, sessionVersionKeyPrefix+uid).Err()
	monitoring.RecordSessionRevocation(err)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions for %s: %w", uid, err)
	}
	return nil
}

func (p *JWTProvider) sessionVersion(ctx context.Context, uid string) (int64, error) {
	version, err := p.redis.Get(ctx, sessionVersionKeyPrefix+uid).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func (p *JWTProvider) customClaims(ctx context.Context, uid string) (map[string]any, error) {
	payload, err := p.redis.Get(ctx, customClaimsKeyPrefix+uid).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims for %s: %w", uid, err)
	}
	return claims, nil
}
