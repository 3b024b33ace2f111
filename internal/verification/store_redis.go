package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// RedisStore implements Store on Redis hashes. The session body lives in a
// "data" field; "attempts" is a separate hash field so HIncrBy gives an atomic
// counter without read-modify-write races across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed verification store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(eventID domain.EventID, key string) string {
	return "gatepass:verify:" + eventID.String() + ":" + key
}

func redisTokenKey(token string) string {
	return "gatepass:verify:token:" + token
}

func (s *RedisStore) Put(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal verification session: %w", err)
	}

	k := redisKey(sess.EventID, sess.Key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k, "data", data, "attempts", sess.Attempts)
	pipe.PExpire(ctx, k, ttl)
	if sess.SessionToken != "" {
		pipe.Set(ctx, redisTokenKey(sess.SessionToken), k, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store verification session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, eventID domain.EventID, key string) (*Session, error) {
	return s.getByRedisKey(ctx, redisKey(eventID, key))
}

func (s *RedisStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	k, err := s.client.Get(ctx, redisTokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve session token: %w", err)
	}
	sess, err := s.getByRedisKey(ctx, k)
	if err != nil {
		return nil, err
	}
	// A replaced session reuses the hash key; the stale pointer must not
	// resolve to the new code's session.
	if sess.SessionToken != token {
		return nil, sentinel.ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) getByRedisKey(ctx context.Context, k string) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, k).Result()
	if err != nil {
		return nil, fmt.Errorf("load verification session: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode verification session: %w", err)
	}
	if attempts, ok := fields["attempts"]; ok {
		if _, err := fmt.Sscanf(attempts, "%d", &sess.Attempts); err != nil {
			return nil, fmt.Errorf("decode attempt counter: %w", err)
		}
	}
	return &sess, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, eventID domain.EventID, key string) (int, error) {
	k := redisKey(eventID, key)
	exists, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("check verification session: %w", err)
	}
	if exists == 0 {
		return 0, sentinel.ErrNotFound
	}
	n, err := s.client.HIncrBy(ctx, k, "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, eventID domain.EventID, key string) (bool, error) {
	k := redisKey(eventID, key)
	sess, err := s.getByRedisKey(ctx, k)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	pipe := s.client.TxPipeline()
	// DEL's reply count decides the race: of two validations deleting the
	// same hash, only one sees it removed.
	removed := pipe.Del(ctx, k)
	if sess.SessionToken != "" {
		pipe.Del(ctx, redisTokenKey(sess.SessionToken))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete verification session: %w", err)
	}
	return removed.Val() > 0, nil
}
