//go:build integration

package verification_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"gatepass/internal/qualification"
	"gatepass/internal/redirecttoken"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/testutil/containers"
)

// RedisStoreSuite runs the verification session store, the issue throttle,
// and the redirect-token store against a real Redis, where atomicity claims
// actually mean something.
type RedisStoreSuite struct {
	suite.Suite

	rd  *containers.RedisContainer
	ctx context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.rd = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.rd.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) newSession(eventID domain.EventID) *verification.Session {
	now := time.Now().UTC()
	return &verification.Session{
		EventID:     eventID,
		Key:         "maria.lopez@example.com",
		CodeHash:    "$2a$10$fakehashfakehashfakehash",
		Email:       "maria.lopez@example.com",
		Profile:     qualification.Profile{FirstName: "Maria", LastName: "Lopez", Email: "maria.lopez@example.com"},
		MaxAttempts: 5,
		IssuedAt:    now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
}

func (s *RedisStoreSuite) TestSessionRoundTrip() {
	store := verification.NewRedis(s.rd.Client)
	eventID := domain.NewEventID()
	sess := s.newSession(eventID)

	s.Require().NoError(store.Put(s.ctx, sess, time.Minute))

	got, err := store.Get(s.ctx, eventID, sess.Key)
	s.Require().NoError(err)
	s.Equal(sess.Email, got.Email)
	s.Equal(sess.CodeHash, got.CodeHash)
	s.Zero(got.Attempts)

	removed, err := store.Delete(s.ctx, eventID, sess.Key)
	s.Require().NoError(err)
	s.True(removed)
	_, err = store.Get(s.ctx, eventID, sess.Key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	removed, err = store.Delete(s.ctx, eventID, sess.Key)
	s.Require().NoError(err)
	s.False(removed, "a second delete finds nothing to consume")
}

func (s *RedisStoreSuite) TestIncrementAttemptsIsAtomic() {
	store := verification.NewRedis(s.rd.Client)
	eventID := domain.NewEventID()
	sess := s.newSession(eventID)
	s.Require().NoError(store.Put(s.ctx, sess, time.Minute))

	var max int64
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			n, err := store.IncrementAttempts(s.ctx, eventID, sess.Key)
			if err != nil {
				return err
			}
			for {
				cur := atomic.LoadInt64(&max)
				if int64(n) <= cur || atomic.CompareAndSwapInt64(&max, cur, int64(n)) {
					return nil
				}
			}
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int64(10), max, "ten concurrent increments count every attempt")
}

func (s *RedisStoreSuite) TestTokenPointerGoesStaleOnReissue() {
	store := verification.NewRedis(s.rd.Client)
	eventID := domain.NewEventID()

	first := s.newSession(eventID)
	first.EmailMasked = true
	first.SessionToken = "token-one"
	s.Require().NoError(store.Put(s.ctx, first, time.Minute))

	got, err := store.GetByToken(s.ctx, "token-one")
	s.Require().NoError(err)
	s.Equal(first.Email, got.Email)

	// Reissue replaces the session under the same key with a new token.
	second := s.newSession(eventID)
	second.EmailMasked = true
	second.SessionToken = "token-two"
	s.Require().NoError(store.Put(s.ctx, second, time.Minute))

	_, err = store.GetByToken(s.ctx, "token-one")
	s.ErrorIs(err, sentinel.ErrNotFound, "the old token must not resolve the new session")

	got, err = store.GetByToken(s.ctx, "token-two")
	s.Require().NoError(err)
	s.Equal("token-two", got.SessionToken)
}

func (s *RedisStoreSuite) TestSessionExpires() {
	store := verification.NewRedis(s.rd.Client)
	eventID := domain.NewEventID()
	sess := s.newSession(eventID)

	s.Require().NoError(store.Put(s.ctx, sess, 100*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, err := store.Get(s.ctx, eventID, sess.Key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestThrottle() {
	throttle := verification.NewRedisThrottle(s.rd.Client, 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := throttle.Allow(s.ctx, "event:maria")
		s.Require().NoError(err)
		s.True(ok)
	}
	ok, err := throttle.Allow(s.ctx, "event:maria")
	s.Require().NoError(err)
	s.False(ok, "the third request in the window is throttled")

	ok, err = throttle.Allow(s.ctx, "event:other")
	s.Require().NoError(err)
	s.True(ok, "keys throttle independently")
}

func (s *RedisStoreSuite) TestRedirectTokenConsumedExactlyOnce() {
	store := redirecttoken.NewRedis(s.rd.Client)
	now := time.Now().UTC()
	token := &redirecttoken.Token{
		Value:     "one-shot-value",
		EventID:   domain.NewEventID(),
		Email:     "maria.lopez@example.com",
		Profile:   qualification.Profile{FirstName: "Maria", LastName: "Lopez", Email: "maria.lopez@example.com"},
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	s.Require().NoError(store.Put(s.ctx, token, 5*time.Minute))

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			if _, err := store.Consume(s.ctx, "one-shot-value"); err == nil {
				wins.Add(1)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), wins.Load(), "GETDEL hands the token to exactly one caller")
}
