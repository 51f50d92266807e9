// Package store abstracts the document store the core subsystems read and
// write: global singleton configuration documents and per-user documents,
// addressed by collection and id. Every call is independently fallible.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("document not found")

// Well-known collections
const (
	CollectionUserProfiles     = "user_profiles"
	CollectionGlobalApiConfigs = "global_api_configs"
	CollectionUserApiConfigs   = "user_api_configs"
	CollectionGlobalConfig     = "global_config"
)

// Well-known global_config document ids
const (
	DocRbacCapabilities = "rbac_capabilities"
	DocTiers            = "tiers"
	DocApiLimits        = "api_limits"
)

// Store provides async CRUD over named collections keyed by id
type Store interface {
	GetGlobal(ctx context.Context, collection, id string) (json.RawMessage, error)
	SetGlobal(ctx context.Context, collection, id string, data any) error
	// UpdateGlobal merges the given partial document into the stored one.
	// Returns ErrNotFound when the document does not exist.
	UpdateGlobal(ctx context.Context, collection, id string, partial any) error
	DeleteGlobal(ctx context.Context, collection, id string) error
	ListGlobal(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	// ListGlobalIDs pages document ids in lexical order, starting after
	// afterID. Used for bounded-batch iteration over large collections.
	ListGlobalIDs(ctx context.Context, collection, afterID string, limit int) ([]string, error)

	GetUser(ctx context.Context, userID, collection, id string) (json.RawMessage, error)
	SetUser(ctx context.Context, userID, collection, id string, data any) error
	UpdateUser(ctx context.Context, userID, collection, id string, partial any) error
	DeleteUser(ctx context.Context, userID, collection, id string) error
	ListUser(ctx context.Context, userID, collection string) (map[string]json.RawMessage, error)
}

// Decode unmarshals a raw document into v
func Decode(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

// GetGlobalAs fetches a global document and decodes it into v
func GetGlobalAs(ctx context.Context, s Store, collection, id string, v any) error {
	raw, err := s.GetGlobal(ctx, collection, id)
	if err != nil {
		return err
	}
	return Decode(raw, v)
}

// GetUserAs fetches a per-user document and decodes it into v
func GetUserAs(ctx context.Context, s Store, userID, collection, id string, v any) error {
	raw, err := s.GetUser(ctx, userID, collection, id)
	if err != nil {
		return err
	}
	return Decode(raw, v)
}
