package domain

import dErrors "gatepass/pkg/domain-errors"

// RegistrationMode is the trust model an event collects registrations under.
// Invariant: the value must be one of the supported modes.
//
// Usage: construct via ParseRegistrationMode at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type RegistrationMode string

// Supported registration modes.
const (
	// ModeQualifiedVerified gates registration on a pre-approved qualified
	// list and requires proof of email control before the form is reachable.
	ModeQualifiedVerified RegistrationMode = "qualified_verified"
	// ModeOpenVerified lets anyone fill the form but gates submission on
	// proof of email control.
	ModeOpenVerified RegistrationMode = "open_verified"
	// ModeOpenAnonymous accepts submissions with no verification; the same
	// email may register multiple times.
	ModeOpenAnonymous RegistrationMode = "open_anonymous"
)

// validModes is the single source of truth for valid registration modes.
var validModes = map[RegistrationMode]bool{
	ModeQualifiedVerified: true,
	ModeOpenVerified:      true,
	ModeOpenAnonymous:     true,
}

// ParseRegistrationMode constructs a RegistrationMode from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRegistrationMode(s string) (RegistrationMode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "registration mode cannot be empty")
	}
	m := RegistrationMode(s)
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid registration mode")
	}
	return m, nil
}

// IsValid checks if the mode is one of the supported enum values.
func (m RegistrationMode) IsValid() bool {
	return validModes[m]
}

// RequiresVerification reports whether submissions under this mode must carry
// a verified identity (OTC validation or an equivalent redirect token).
func (m RegistrationMode) RequiresVerification() bool {
	return m == ModeQualifiedVerified || m == ModeOpenVerified
}

// AllowsDuplicates reports whether the same email may hold multiple
// registration rows for one event.
func (m RegistrationMode) AllowsDuplicates() bool {
	return m == ModeOpenAnonymous
}

// String returns the string representation of the mode.
func (m RegistrationMode) String() string {
	return string(m)
}
