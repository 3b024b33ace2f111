// Package flow drives a registrant's journey as a server-side state machine.
// Each session holds exactly one discriminated state value; handlers render
// whatever step that state names, so client and server can never disagree
// about where in the journey a registrant is.
package flow

import (
	"time"

	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// State is the single discriminator for a flow session.
type State string

const (
	// StateEmail awaits an identity claim.
	StateEmail State = "email"
	// StateOTP awaits the one-time code.
	StateOTP State = "otp"
	// StateForm awaits the registration form.
	StateForm State = "form"
	// StateSuccess is terminal: the registration landed.
	StateSuccess State = "success"
	// StateNotQualified is terminal: the identity is not on the list.
	StateNotQualified State = "not_qualified"
	// StateRegistrationClosed is terminal: the event stopped accepting.
	StateRegistrationClosed State = "registration_closed"
)

// Terminal reports whether the session can never advance again.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateNotQualified, StateRegistrationClosed:
		return true
	}
	return false
}

// Session is one registrant's in-progress journey. PendingFields survives
// every recoverable error so a typo in the code never costs the form.
type Session struct {
	ID      domain.FlowID
	EventID domain.EventID
	Mode    domain.RegistrationMode
	State   State

	// Identity claim as last submitted.
	ClaimEmail         string
	ClaimDistributorID string
	Key                string

	// What the caller may see while unverified.
	MaskedEmail string
	EmailMasked bool

	// SessionToken addresses the verification session on the masked path.
	SessionToken string

	// Profile is set once verification (or a consumed redirect token, or a
	// signed link) proves the identity.
	Profile  *qualification.Profile
	Verified bool

	// Pending form payload, preserved across recoverable errors and Reset.
	PendingFields     map[string]string
	PendingLanguage   string
	PendingCompanions int

	// Set in StateSuccess.
	RegistrationID string
	WasUpdated     bool

	// Human-readable reason accompanying a terminal rejection state.
	Reason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// require guards an operation against the wrong step or a finished session.
func (s *Session) require(states ...State) error {
	if s.State.Terminal() {
		if s.State == StateRegistrationClosed {
			return dErrors.New(dErrors.CodeRegistrationClosed, "registration is closed")
		}
		return dErrors.Newf(dErrors.CodeInvalidInput, "flow already finished in state %s", s.State)
	}
	for _, st := range states {
		if s.State == st {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "operation not valid in state %s", s.State)
}
