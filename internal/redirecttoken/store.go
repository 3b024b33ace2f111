package redirecttoken

import (
	"context"
	"time"
)

// Store persists redirect tokens. Consume must be atomic exactly-once: of any
// number of concurrent consumers for one value, exactly one receives the
// token and the rest see not-found.
type Store interface {
	Put(ctx context.Context, t *Token, ttl time.Duration) error
	Consume(ctx context.Context, value string) (*Token, error)
}
