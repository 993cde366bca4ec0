package platform

import (
	"context"
	"sync"
	"time"
)

// MemoryEntityStore is an in-memory EntityStore used by tests and the local
// CLI wiring when the platform database is not reachable from this process.
type MemoryEntityStore struct {
	mu       sync.Mutex
	nextID   int64
	entities map[int64]*Entity
	byKey    map[entityKey]int64
}

type entityKey struct {
	connectorID int64
	externalID  string
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		nextID:   1,
		entities: make(map[int64]*Entity),
		byKey:    make(map[entityKey]int64),
	}
}

func (s *MemoryEntityStore) FindByExternalKey(_ context.Context, connectorID int64, externalID string) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[entityKey{connectorID: connectorID, externalID: externalID}]
	if !ok {
		return nil, ErrEntityNotFound
	}

	clone := *s.entities[id]
	return &clone, nil
}

func (s *MemoryEntityStore) Write(_ context.Context, connectorID int64, entity *Entity) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entity
	stored.UpdatedAt = time.Now().UTC()

	if stored.ID == 0 {
		stored.ID = s.nextID
		s.nextID++
	}
	s.entities[stored.ID] = &stored
	s.byKey[entityKey{connectorID: connectorID, externalID: stored.ExternalID}] = stored.ID

	clone := stored
	return &clone, nil
}

func (s *MemoryEntityStore) MarkManuallyEdited(_ context.Context, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return ErrEntityNotFound
	}
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns an entity by id; test helper.
func (s *MemoryEntityStore) Get(entityID int64) (*Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return nil, false
	}
	clone := *entity
	return &clone, true
}
