package redirecttoken

import (
	"context"
	"sync"
	"time"

	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with delete-on-read under one mutex, which
// is all single-use needs on a single instance.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewInMemoryStore creates an empty in-memory token store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*Token)}
}

func (s *InMemoryStore) Put(ctx context.Context, t *Token, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[t.Value] = &cp
	return nil
}

func (s *InMemoryStore) Consume(ctx context.Context, value string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[value]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.tokens, value)
	cp := *t
	return &cp, nil
}
