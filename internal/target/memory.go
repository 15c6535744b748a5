package target

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"datasync/internal/transform"
)

// MemoryStore is an in-process Store with the same loose key matching as
// MongoStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Entity
}

// NewMemoryStore creates a store holding copies of seed.
func NewMemoryStore(seed ...map[string]any) *MemoryStore {
	s := &MemoryStore{}
	for _, fields := range seed {
		s.docs = append(s.docs, Entity{ID: uuid.NewString(), Fields: clone(fields)})
	}
	return s
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// FindByKey returns the first entity whose field matches one of the key candidates.
func (s *MemoryStore) FindByKey(_ context.Context, field string, value any) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := KeyCandidates(value)
	for _, doc := range s.docs {
		stored, ok := doc.Fields[field]
		if !ok {
			continue
		}
		for _, c := range candidates {
			if transform.StrictEqual(stored, c) {
				return &Entity{ID: doc.ID, Fields: clone(doc.Fields)}, nil
			}
		}
	}
	return nil, nil
}

// Insert stores fields under a fresh id and returns it.
func (s *MemoryStore) Insert(_ context.Context, fields map[string]any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.docs = append(s.docs, Entity{ID: id, Fields: clone(fields)})
	return id, nil
}

// Update applies set to the entity with id.
func (s *MemoryStore) Update(_ context.Context, id any, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			for k, v := range set {
				s.docs[i].Fields[k] = v
			}
			return nil
		}
	}
	return errEntityGone
}

// All returns a copy of every stored entity in insertion order.
func (s *MemoryStore) All() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, Entity{ID: d.ID, Fields: clone(d.Fields)})
	}
	return out
}

type staticOwner string

// StaticOwner resolves to a fixed administrator id; "" means none exists.
func StaticOwner(id string) OwnerResolver {
	return staticOwner(id)
}

func (o staticOwner) FirstActiveAdmin(context.Context) (string, error) {
	return string(o), nil
}
