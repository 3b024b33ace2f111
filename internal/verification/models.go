// Package verification owns one-time-code issuance and validation: the proof
// that a caller controls the email address their registration will use.
package verification

import (
	"time"

	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
)

// Session is one live verification attempt for an (event, identity) pair.
// Issue replaces any prior session for the same key, so at most one code is
// ever valid per identity per event.
type Session struct {
	EventID domain.EventID
	Key     string

	// CodeHash is the bcrypt hash of the numeric code. The plaintext exists
	// only in the outbound email message.
	CodeHash string

	// Email is the true delivery address. On the masked path it never leaves
	// the server; callers see MaskedEmail and hold SessionToken instead.
	Email        string
	MaskedEmail  string
	EmailMasked  bool
	SessionToken string

	// Profile is the qualification snapshot captured at issue time, returned
	// verbatim on successful validation.
	Profile qualification.Profile

	Attempts    int
	MaxAttempts int
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IdentityRef names the session a validation targets: the email the caller
// typed, or the opaque token handed out on the masked path.
type IdentityRef struct {
	Email        string
	SessionToken string
}

// IssueResult is what a caller may learn after a code is issued. The true
// address is absent on purpose.
type IssueResult struct {
	MaskedEmail  string
	EmailMasked  bool
	SessionToken string
	ExpiresAt    time.Time
}
