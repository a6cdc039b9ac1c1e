package searchsync

import (
	"context"
	"sort"
	"sync"
)

// EntityStore is the system of record. The core never writes to it;
// it loads entities for indexing and enumerates primary keys for
// reindex and leftover cleanup.
type EntityStore interface {
	// Get loads the entity named by the identifier. Returns an error
	// wrapping ErrNotFound when the entity no longer exists, and one
	// wrapping ErrStoreUnavailable for connectivity failures.
	Get(ctx context.Context, id Identifier) (Entity, error)

	// ListPKs returns all primary keys of the given type, ordered.
	ListPKs(ctx context.Context, t EntityType) ([]string, error)

	// Reset drops pooled connections. The consumer calls this after a
	// store connectivity failure so the retry starts from a clean
	// connection.
	Reset()
}

// MemoryStore is an in-memory EntityStore for tests and examples.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]Entity
	resets   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[string]Entity)}
}

// Put stores an entity under its identifier.
func (s *MemoryStore) Put(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.Identifier().String()] = e
}

// Remove deletes an entity.
func (s *MemoryStore) Remove(id Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id.String())
}

func (s *MemoryStore) Get(ctx context.Context, id Identifier) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id.String()]
	if !ok {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"identifier": id.String(),
		})
	}
	return e, nil
}

func (s *MemoryStore) ListPKs(ctx context.Context, t EntityType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pks []string
	for _, e := range s.entities {
		id := e.Identifier()
		if id.Type() == t {
			pks = append(pks, id.PK)
		}
	}
	sort.Strings(pks)
	return pks, nil
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

// Resets returns how many times Reset was called. Test helper.
func (s *MemoryStore) Resets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resets
}
