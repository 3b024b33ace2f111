package flow

import (
	"context"
	"sync"
	"time"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Expiry is a
// read-time check against the stored deadline.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.FlowID]*memoryEntry
}

type memoryEntry struct {
	session  Session
	deadline time.Time
}

// NewInMemoryStore creates an empty in-memory flow store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[domain.FlowID]*memoryEntry)}
}

func (s *InMemoryStore) Put(ctx context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &memoryEntry{session: *sess, deadline: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id domain.FlowID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if time.Now().After(entry.deadline) {
		return nil, sentinel.ErrExpired
	}
	cp := entry.session
	return &cp, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.FlowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
