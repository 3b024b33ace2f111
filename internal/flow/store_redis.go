package flow

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

// RedisStore implements Store on Redis with TTL-native expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed flow store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id domain.FlowID) string {
	return "gatepass:flow:" + id.String()
}

func (s *RedisStore) Put(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal flow session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store flow session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id domain.FlowID) (*Session, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load flow session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode flow session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id domain.FlowID) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("delete flow session: %w", err)
	}
	return nil
}
