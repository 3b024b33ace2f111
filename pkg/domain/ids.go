// Package domain holds primitive domain types shared across services.
//
// IDs are distinct UUID types so the compiler rejects cross-type assignment;
// construct them from external input via the Parse functions, which enforce
// valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "gatepass/pkg/domain-errors"
)

type (
	// EventID identifies an event.
	EventID uuid.UUID
	// RegistrationID identifies a registration row.
	RegistrationID uuid.UUID
	// RegistrantID identifies a qualified-list entry.
	RegistrantID uuid.UUID
	// FlowID identifies a registration flow session.
	FlowID uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be nil", kind)
	}
	return u, nil
}

// ParseEventID validates and returns an EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event")
	return EventID(u), err
}

// ParseRegistrationID validates and returns a RegistrationID.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration")
	return RegistrationID(u), err
}

// ParseRegistrantID validates and returns a RegistrantID.
func ParseRegistrantID(s string) (RegistrantID, error) {
	u, err := parseUUID(s, "registrant")
	return RegistrantID(u), err
}

// ParseFlowID validates and returns a FlowID.
func ParseFlowID(s string) (FlowID, error) {
	u, err := parseUUID(s, "flow")
	return FlowID(u), err
}

func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id RegistrantID) String() string   { return uuid.UUID(id).String() }
func (id FlowID) String() string         { return uuid.UUID(id).String() }

func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RegistrantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id FlowID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// NewEventID returns a fresh random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewRegistrationID returns a fresh random RegistrationID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

// NewRegistrantID returns a fresh random RegistrantID.
func NewRegistrantID() RegistrantID { return RegistrantID(uuid.New()) }

// NewFlowID returns a fresh random FlowID.
func NewFlowID() FlowID { return FlowID(uuid.New()) }
