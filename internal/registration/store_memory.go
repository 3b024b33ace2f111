package registration

import (
	"context"
	"sync"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. It enforces the
// same (event, email) uniqueness rule the Postgres partial index does.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.RegistrationID]*Registration
}

// NewInMemoryStore creates an empty in-memory registration store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.RegistrationID]*Registration)}
}

// findCollision returns the unique-rule row matching the candidate, if any.
// Caller holds the lock.
func (s *InMemoryStore) findCollision(r *Registration) *Registration {
	if r.AllowDuplicates {
		return nil
	}
	for _, existing := range s.rows {
		if existing.AllowDuplicates {
			continue
		}
		if existing.EventID == r.EventID && existing.Email == r.Email && existing.ID != r.ID {
			return existing
		}
	}
	return nil
}

func (s *InMemoryStore) Upsert(ctx context.Context, r *Registration) (*Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findCollision(r); existing != nil {
		updated := *r
		updated.ID = existing.ID
		updated.RegisteredAt = existing.RegisteredAt
		updated.CheckedInAt = existing.CheckedInAt
		updated.BadgePrintedAt = existing.BadgePrintedAt
		if existing.Status == domain.StatusCheckedIn {
			updated.Status = existing.Status
		}
		s.rows[existing.ID] = &updated
		cp := updated
		return &cp, true, nil
	}

	cp := *r
	s.rows[r.ID] = &cp
	out := cp
	return &out, false, nil
}

func (s *InMemoryStore) Insert(ctx context.Context, r *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findCollision(r); existing != nil {
		return sentinel.ErrConflict
	}
	cp := *r
	s.rows[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.RegistrationID) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) FindByIdentity(ctx context.Context, eventID domain.EventID, normalizedEmail, distributorID string) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if r.EventID != eventID || r.AllowDuplicates {
			continue
		}
		if normalizedEmail != "" && r.Email == normalizedEmail {
			cp := *r
			return &cp, nil
		}
		if distributorID != "" && r.DistributorID == distributorID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByEvent(ctx context.Context, eventID domain.EventID) ([]*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Registration
	for _, r := range s.rows {
		if r.EventID == eventID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Execute(ctx context.Context, id domain.RegistrationID, validate func(*Registration) error, mutate func(*Registration)) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	candidate := *r
	if err := validate(&candidate); err != nil {
		return nil, err
	}
	mutate(&candidate)

	if existing := s.findCollision(&candidate); existing != nil {
		return nil, sentinel.ErrConflict
	}

	s.rows[id] = &candidate
	cp := candidate
	return &cp, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}
