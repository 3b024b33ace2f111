package redirecttoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatepass/pkg/platform/sentinel"
)

// RedisStore implements Store on Redis. GetDel makes consume atomic across
// instances; the TTL makes expiry enforcement server-side.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed token store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(value string) string {
	return "gatepass:redirect:" + value
}

func (s *RedisStore) Put(ctx context.Context, t *Token, ttl time.Duration) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal redirect token: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(t.Value), data, ttl).Err(); err != nil {
		return fmt.Errorf("store redirect token: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, value string) (*Token, error) {
	data, err := s.client.GetDel(ctx, redisKey(value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("consume redirect token: %w", err)
	}
	var t Token
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("decode redirect token: %w", err)
	}
	return &t, nil
}
