package verification

import (
	"context"
	"sync"
	"time"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map plus a token index.
// Expiry is a read-time check in the service; nothing sweeps in the background.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byToken  map[string]string
}

// NewInMemoryStore creates an empty in-memory verification store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		byToken:  make(map[string]string),
	}
}

func sessionKey(eventID domain.EventID, key string) string {
	return eventID.String() + ":" + key
}

func (s *InMemoryStore) Put(ctx context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey(sess.EventID, sess.Key)
	if prior, ok := s.sessions[k]; ok && prior.SessionToken != "" {
		delete(s.byToken, prior.SessionToken)
	}
	cp := *sess
	s.sessions[k] = &cp
	if cp.SessionToken != "" {
		s.byToken[cp.SessionToken] = k
	}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, eventID domain.EventID, key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(eventID, key)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	sess, ok := s.sessions[k]
	if !ok || sess.SessionToken != token {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStore) IncrementAttempts(ctx context.Context, eventID domain.EventID, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(eventID, key)]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	sess.Attempts++
	return sess.Attempts, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, eventID domain.EventID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey(eventID, key)
	sess, ok := s.sessions[k]
	if !ok {
		return false, nil
	}
	if sess.SessionToken != "" {
		delete(s.byToken, sess.SessionToken)
	}
	delete(s.sessions, k)
	return true, nil
}
