package qualification

import (
	"context"

	"gatepass/pkg/platform/sentinel"
)

// NoopDirectory is the stand-in when no external directory is configured.
// Every lookup misses, so provenance never upgrades past the qualified list.
type NoopDirectory struct{}

func (NoopDirectory) Lookup(ctx context.Context, claim IdentityClaim) (*DirectoryIdentity, error) {
	return nil, sentinel.ErrNotFound
}
