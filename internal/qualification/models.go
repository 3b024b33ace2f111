// Package qualification decides who may register: it reconciles a claimed
// identity against the event's qualified list and an optional external
// directory, and owns the email-masking privacy rule.
package qualification

import (
	"time"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
)

// QualifiedRegistrant is one admin-curated entry pre-approved to register for
// a specific event.
type QualifiedRegistrant struct {
	ID            domain.RegistrantID
	EventID       domain.EventID
	FirstName     string
	LastName      string
	Email         string
	DistributorID string

	// GuestAllowance is how many companions this registrant may bring.
	GuestAllowance int

	CreatedAt time.Time
}

// IdentityClaim is what a caller asserts about themselves. At least one of
// Email or DistributorID must be present; neither is trusted until verified.
type IdentityClaim struct {
	Email         string
	DistributorID string
}

// Validate enforces the at-least-one rule.
func (c IdentityClaim) Validate() error {
	if c.Email == "" && c.DistributorID == "" {
		return dErrors.WithFields(dErrors.CodeValidation,
			"email or distributor id is required", []string{"email", "distributor_id"})
	}
	if c.Email != "" && !email.Valid(c.Email) {
		return dErrors.WithFields(dErrors.CodeValidation, "invalid email address", []string{"email"})
	}
	return nil
}

// Key canonicalizes the claim for session keying: email wins when present.
func (c IdentityClaim) Key() string {
	if c.Email != "" {
		return email.Normalize(c.Email)
	}
	return "dist:" + c.DistributorID
}

// Profile is a resolved, qualified identity. Email always holds the true
// address (server-side only); when EmailMasked is set, the caller has not
// proven control of it and only MaskedEmail may appear in any response or
// error message.
type Profile struct {
	FirstName     string
	LastName      string
	Email         string
	MaskedEmail   string
	EmailMasked   bool
	DistributorID string

	GuestAllowance int

	// VerifiedByDirectory marks identities confirmed against the external
	// authoritative directory rather than only the local qualified list.
	VerifiedByDirectory bool
}

// PublicEmail returns the address safe to show the current caller.
func (p Profile) PublicEmail() string {
	if p.EmailMasked {
		return p.MaskedEmail
	}
	return p.Email
}
