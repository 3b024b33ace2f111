package qualification

import (
	"context"
	"sync"

	"gatepass/pkg/domain"
	"gatepass/pkg/email"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded slice per event.
type InMemoryStore struct {
	mu      sync.RWMutex
	byEvent map[domain.EventID][]*QualifiedRegistrant
}

// NewInMemoryStore creates an empty in-memory qualified-list store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byEvent: make(map[domain.EventID][]*QualifiedRegistrant)}
}

func (s *InMemoryStore) Create(ctx context.Context, q *QualifiedRegistrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm := email.Normalize(q.Email)
	for _, existing := range s.byEvent[q.EventID] {
		if email.Normalize(existing.Email) == norm {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *q
	s.byEvent[q.EventID] = append(s.byEvent[q.EventID], &cp)
	return nil
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, eventID domain.EventID, normalizedEmail string) (*QualifiedRegistrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.byEvent[eventID] {
		if email.Normalize(q.Email) == normalizedEmail {
			cp := *q
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByDistributorID(ctx context.Context, eventID domain.EventID, distributorID string) (*QualifiedRegistrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.byEvent[eventID] {
		if q.DistributorID != "" && q.DistributorID == distributorID {
			cp := *q
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByEvent(ctx context.Context, eventID domain.EventID) ([]*QualifiedRegistrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*QualifiedRegistrant, 0, len(s.byEvent[eventID]))
	for _, q := range s.byEvent[eventID] {
		cp := *q
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.RegistrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eventID, list := range s.byEvent {
		for i, q := range list {
			if q.ID == id {
				s.byEvent[eventID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return sentinel.ErrNotFound
}
