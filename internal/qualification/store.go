package qualification

import (
	"context"

	"gatepass/pkg/domain"
)

// Store persists the qualified list. Lookups take normalized email; stores
// compare case-insensitively.
type Store interface {
	Create(ctx context.Context, q *QualifiedRegistrant) error
	FindByEmail(ctx context.Context, eventID domain.EventID, normalizedEmail string) (*QualifiedRegistrant, error)
	FindByDistributorID(ctx context.Context, eventID domain.EventID, distributorID string) (*QualifiedRegistrant, error)
	ListByEvent(ctx context.Context, eventID domain.EventID) ([]*QualifiedRegistrant, error)
	Delete(ctx context.Context, id domain.RegistrantID) error
}

// Directory is the optional external authoritative identity directory. A hit
// only upgrades provenance (Profile.VerifiedByDirectory); eligibility always
// comes from the qualified list.
type Directory interface {
	Lookup(ctx context.Context, claim IdentityClaim) (*DirectoryIdentity, error)
}

// DirectoryIdentity is the directory's view of a person.
type DirectoryIdentity struct {
	FirstName     string
	LastName      string
	Email         string
	DistributorID string
}
