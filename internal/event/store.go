package event

import (
	"context"

	"gatepass/pkg/domain"
)

// Store persists events. Stores are pure I/O; transition rules live on the
// model and are enforced inside Execute while the store holds its lock.
type Store interface {
	Create(ctx context.Context, e *Event) error
	FindByID(ctx context.Context, id domain.EventID) (*Event, error)

	// Execute atomically loads the event, runs validate, applies mutate, and
	// persists — under the store's lock (mutex or FOR UPDATE).
	Execute(ctx context.Context, id domain.EventID, validate func(*Event) error, mutate func(*Event)) (*Event, error)
}
