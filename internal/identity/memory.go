package identity

import (
	"context"
	"sync"
)

// MemoryProvider is an in-memory identity provider for tests. Tokens are
// opaque strings mapped directly to identities.
type MemoryProvider struct {
	mu          sync.Mutex
	tokens      map[string]*Identity
	claims      map[string]map[string]any
	revocations map[string]int
	// FailRevoke simulates a provider outage on RevokeSessions
	FailRevoke error
}

// NewMemoryProvider creates an empty in-memory identity provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		tokens:      make(map[string]*Identity),
		claims:      make(map[string]map[string]any),
		revocations: make(map[string]int),
	}
}

// AddToken registers an opaque token for a user
func (p *MemoryProvider) AddToken(token, uid string, claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = &Identity{UID: uid, Claims: claims}
}

func (p *MemoryProvider) VerifyToken(_ context.Context, token string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return id, nil
}

func (p *MemoryProvider) SetCustomClaims(_ context.Context, uid string, claims map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claims[uid] = claims
	return nil
}

func (p *MemoryProvider) RevokeSessions(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailRevoke != nil {
		return p.FailRevoke
	}
	p.revocations[uid]++
	return nil
}

// CustomClaims returns the last claims set for a user
func (p *MemoryProvider) CustomClaims(uid string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claims[uid]
}

// Revocations returns how many times a user's sessions were revoked
func (p *MemoryProvider) Revocations(uid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revocations[uid]
}
