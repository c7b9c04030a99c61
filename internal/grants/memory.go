package grants

import (
	"context"
	"sync"
	"time"
)

type holder struct {
	principal  PrincipalRef
	capability string
}

// MemoryStore is an in-process Store keyed by (objectType, objectID). It
// backs single-node deployments without Postgres and the test suites.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[ObjectRef]map[holder]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[ObjectRef]map[holder]time.Time)}
}

// Upsert records a grant, keeping the original timestamp on re-grant.
func (s *MemoryStore) Upsert(ctx context.Context, g Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders, ok := s.objects[g.Object]
	if !ok {
		holders = make(map[holder]time.Time)
		s.objects[g.Object] = holders
	}
	key := holder{principal: g.Principal, capability: g.Capability}
	if _, exists := holders[key]; !exists {
		holders[key] = time.Now()
	}
	return nil
}

// Delete removes a grant if present.
func (s *MemoryStore) Delete(ctx context.Context, g Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders, ok := s.objects[g.Object]
	if !ok {
		return nil
	}
	delete(holders, holder{principal: g.Principal, capability: g.Capability})
	if len(holders) == 0 {
		delete(s.objects, g.Object)
	}
	return nil
}

// DeleteByObject drops every grant on the object.
func (s *MemoryStore) DeleteByObject(ctx context.Context, obj ObjectRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, obj)
	return nil
}

// Capabilities returns the capabilities the principal holds on the object.
func (s *MemoryStore) Capabilities(ctx context.Context, p PrincipalRef, obj ObjectRef) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var caps []string
	for key := range s.objects[obj] {
		if key.principal == p {
			caps = append(caps, key.capability)
		}
	}
	return caps, nil
}

// PrincipalsWithCapability returns every holder of the capability on the
// object.
func (s *MemoryStore) PrincipalsWithCapability(ctx context.Context, capability string, obj ObjectRef) ([]PrincipalRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[PrincipalRef]struct{})
	var principals []PrincipalRef
	for key := range s.objects[obj] {
		if key.capability != capability {
			continue
		}
		if _, dup := seen[key.principal]; dup {
			continue
		}
		seen[key.principal] = struct{}{}
		principals = append(principals, key.principal)
	}
	return principals, nil
}
