package verification

import (
	"context"
	"time"

	"gatepass/pkg/domain"
)

// Store persists live verification sessions. Put replaces any existing
// session for the same (event, key); IncrementAttempts must be atomic so
// concurrent validations cannot both observe a spare attempt. Delete reports
// whether a session was actually removed, so exactly one of two racing
// success-path validations gets to consume it.
type Store interface {
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, eventID domain.EventID, key string) (*Session, error)
	GetByToken(ctx context.Context, token string) (*Session, error)
	IncrementAttempts(ctx context.Context, eventID domain.EventID, key string) (int, error)
	Delete(ctx context.Context, eventID domain.EventID, key string) (bool, error)
}
