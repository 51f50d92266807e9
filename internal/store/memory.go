package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory document store used in tests and local
// development. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	global map[string]map[string]json.RawMessage            // collection -> id -> doc
	user   map[string]map[string]map[string]json.RawMessage // userID -> collection -> id -> doc
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		global: make(map[string]map[string]json.RawMessage),
		user:   make(map[string]map[string]map[string]json.RawMessage),
	}
}

func (s *MemoryStore) GetGlobal(_ context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.global[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) SetGlobal(_ context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global[collection] == nil {
		s.global[collection] = make(map[string]json.RawMessage)
	}
	s.global[collection][id] = payload
	return nil
}

func (s *MemoryStore) UpdateGlobal(_ context.Context, collection, id string, partial any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("failed to marshal partial %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.global[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeJSON(existing, payload)
	if err != nil {
		return err
	}
	s.global[collection][id] = merged
	return nil
}

func (s *MemoryStore) DeleteGlobal(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.global[collection], id)
	return nil
}

func (s *MemoryStore) ListGlobal(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]json.RawMessage, len(s.global[collection]))
	for id, doc := range s.global[collection] {
		docs[id] = doc
	}
	return docs, nil
}

func (s *MemoryStore) ListGlobalIDs(_ context.Context, collection, afterID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id := range s.global[collection] {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.user[userID][collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) SetUser(_ context.Context, userID, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal user document %s/%s/%s: %w", userID, collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = make(map[string]map[string]json.RawMessage)
	}
	if s.user[userID][collection] == nil {
		s.user[userID][collection] = make(map[string]json.RawMessage)
	}
	s.user[userID][collection][id] = payload
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, userID, collection, id string, partial any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("failed to marshal partial %s/%s/%s: %w", userID, collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.user[userID][collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeJSON(existing, payload)
	if err != nil {
		return err
	}
	s.user[userID][collection][id] = merged
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user[userID][collection], id)
	return nil
}

func (s *MemoryStore) ListUser(_ context.Context, userID, collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]json.RawMessage, len(s.user[userID][collection]))
	for id, doc := range s.user[userID][collection] {
		docs[id] = doc
	}
	return docs, nil
}

// mergeJSON performs a shallow top-level merge, matching the Postgres
// jsonb || operator.
func mergeJSON(existing, partial json.RawMessage) (json.RawMessage, error) {
	var base, overlay map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("failed to merge document: %w", err)
	}
	if err := json.Unmarshal(partial, &overlay); err != nil {
		return nil, fmt.Errorf("failed to merge partial: %w", err)
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}
