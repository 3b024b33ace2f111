package flow

import (
	"context"
	"time"

	"gatepass/pkg/domain"
)

// Store persists flow sessions. Sessions are keyed by opaque flow id; nothing
// about a session is derivable from the id itself.
type Store interface {
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id domain.FlowID) (*Session, error)
	Delete(ctx context.Context, id domain.FlowID) error
}
