package registration

import (
	"context"

	"gatepass/pkg/domain"
)

// Store persists registrations.
//
// Upsert reconciles on the (event, email) uniqueness rule: a colliding row is
// overwritten field-by-field (keeping its id, registeredAt, and check-in
// state) and the second return reports whether that happened. Insert always
// creates a row and is reserved for anonymous-mode submissions. Execute runs
// validate-then-mutate under the store's write lock, like the event store.
type Store interface {
	Upsert(ctx context.Context, r *Registration) (*Registration, bool, error)
	Insert(ctx context.Context, r *Registration) error
	FindByID(ctx context.Context, id domain.RegistrationID) (*Registration, error)
	FindByIdentity(ctx context.Context, eventID domain.EventID, normalizedEmail, distributorID string) (*Registration, error)
	ListByEvent(ctx context.Context, eventID domain.EventID) ([]*Registration, error)
	Execute(ctx context.Context, id domain.RegistrationID, validate func(*Registration) error, mutate func(*Registration)) (*Registration, error)
	Delete(ctx context.Context, id domain.RegistrationID) error
}
