// Package redirecttoken hands verified identities between flow steps without
// repeating verification: a short-lived, single-use bearer token bound to one
// email and one event.
package redirecttoken

import (
	"time"

	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
)

// Token is the server-side record behind an issued redirect token. The value
// itself is the only credential; possession plus the bound email consumes it.
type Token struct {
	Value   string
	EventID domain.EventID
	Email   string

	// Profile is the verified snapshot carried across the redirect.
	Profile qualification.Profile

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its deadline.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
