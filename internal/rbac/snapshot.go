package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const snapshotCacheKey = "rbac:snapshot"

// capabilitiesDoc mirrors the stored rbac_capabilities document shape
type capabilitiesDoc struct {
	Capabilities models.CapabilityConfig `json:"capabilities"`
}

// tiersDoc mirrors the stored tiers document shape
type tiersDoc struct {
	Tiers models.TierConfig `json:"tiers"`
}

// cachedSnapshot is the serialized form shared through Redis
type cachedSnapshot struct {
	Capabilities models.CapabilityConfig `json:"capabilities"`
	Tiers        models.TierConfig       `json:"tiers"`
}

// SnapshotProvider loads capability and tier configuration from the
// document store and serves immutable snapshots with a freshness TTL.
// A Redis cache shares the loaded configuration across instances; Redis
// being down only costs the shared cache, not correctness.
type SnapshotProvider struct {
	store  store.Store
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewSnapshotProvider creates a snapshot provider. redisClient may be nil.
func NewSnapshotProvider(s store.Store, redisClient *redis.Client, ttl time.Duration) *SnapshotProvider {
	return &SnapshotProvider{
		store:   s,
		redis:   redisClient,
		ttl:     ttl,
		logger:  logging.NewLogger("rbac"),
		current: EmptySnapshot(),
	}
}

// Current returns a fresh snapshot, refreshing from cache/store when the
// held one is stale. A failed refresh degrades to the last known snapshot
// so capability checks keep working on slightly stale configuration.
func (p *SnapshotProvider) Current(ctx context.Context) *Snapshot {
	p.mu.RLock()
	snap := p.current
	p.mu.RUnlock()

	if time.Since(snap.FetchedAt) < p.ttl {
		return snap
	}

	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Snapshot refresh failed, serving stale configuration")
		return snap
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh reloads the snapshot, preferring the shared Redis cache and
// falling back to the document store.
func (p *SnapshotProvider) Refresh(ctx context.Context) error {
	if snap, ok := p.fromCache(ctx); ok {
		p.swap(snap)
		monitoring.RecordSnapshotRefresh("cache")
		return nil
	}

	snap, err := p.fromStore(ctx)
	if err != nil {
		monitoring.RecordSnapshotRefresh("error")
		return err
	}

	p.swap(snap)
	p.toCache(ctx, snap)
	monitoring.RecordSnapshotRefresh("store")
	return nil
}

// Invalidate drops the cached snapshot so the next read reloads it.
// Called after admin mutations of the capability or tier documents.
func (p *SnapshotProvider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.current = &Snapshot{
		Capabilities: p.current.Capabilities,
		Tiers:        p.current.Tiers,
		// Zero FetchedAt forces a refresh on the next Current call
	}
	p.mu.Unlock()

	if p.redis != nil {
		if err := p.redis.Del(ctx, snapshotCacheKey).Err(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to drop snapshot cache")
		}
	}
}

func (p *SnapshotProvider) swap(snap *Snapshot) {
	p.mu.Lock()
	p.current = snap
	p.mu.Unlock()
}

func (p *SnapshotProvider) fromStore(ctx context.Context) (*Snapshot, error) {
	var caps capabilitiesDoc
	err := store.GetGlobalAs(ctx, p.store, store.CollectionGlobalConfig, store.DocRbacCapabilities, &caps)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var tiers tiersDoc
	err = store.GetGlobalAs(ctx, p.store, store.CollectionGlobalConfig, store.DocTiers, &tiers)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	snap := &Snapshot{
		Capabilities: caps.Capabilities,
		Tiers:        tiers.Tiers,
		FetchedAt:    time.Now(),
	}
	if snap.Capabilities == nil {
		snap.Capabilities = models.CapabilityConfig{}
	}
	if snap.Tiers == nil {
		snap.Tiers = models.TierConfig{}
	}
	return snap, nil
}

func (p *SnapshotProvider) fromCache(ctx context.Context) (*Snapshot, bool) {
	if p.redis == nil {
		return nil, false
	}
	payload, err := p.redis.Get(ctx, snapshotCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, false
	}
	return &Snapshot{
		Capabilities: cached.Capabilities,
		Tiers:        cached.Tiers,
		FetchedAt:    time.Now(),
	}, true
}

func (p *SnapshotProvider) toCache(ctx context.Context, snap *Snapshot) {
	if p.redis == nil {
		return
	}
	payload, err := json.Marshal(cachedSnapshot{
		Capabilities: snap.Capabilities,
		Tiers:        snap.Tiers,
	})
	if err != nil {
		return
	}
	if err := p.redis.Set(ctx, snapshotCacheKey, payload, p.ttl).Err(); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to populate snapshot cache")
	}
}
