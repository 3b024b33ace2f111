package event

import (
	"context"
	"sync"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Used by unit tests
// and single-node deployments; PostgresStore is the durable twin.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.EventID]*Event
}

// NewInMemoryStore creates an empty in-memory event store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.EventID]*Event)}
}

func (s *InMemoryStore) Create(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.EventID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryStore) Execute(ctx context.Context, id domain.EventID, validate func(*Event) error, mutate func(*Event)) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	s.events[id] = &cp
	out := cp
	return &out, nil
}
