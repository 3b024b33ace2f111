package domain

import dErrors "gatepass/pkg/domain-errors"

// RegistrationStatus is the lifecycle state of a registration row.
type RegistrationStatus string

const (
	// StatusQualified marks an identity imported from the qualified list
	// that has not completed registration yet.
	StatusQualified RegistrationStatus = "qualified"
	// StatusRegistered marks a completed registration.
	StatusRegistered RegistrationStatus = "registered"
	// StatusCheckedIn marks an attendee checked in on site.
	StatusCheckedIn RegistrationStatus = "checked_in"
	// StatusNotComing marks an attendee who declined after registering.
	StatusNotComing RegistrationStatus = "not_coming"
)

var validStatuses = map[RegistrationStatus]bool{
	StatusQualified:  true,
	StatusRegistered: true,
	StatusCheckedIn:  true,
	StatusNotComing:  true,
}

// ParseRegistrationStatus constructs a RegistrationStatus from external input.
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "registration status cannot be empty")
	}
	st := RegistrationStatus(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid registration status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s RegistrationStatus) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s RegistrationStatus) String() string {
	return string(s)
}

// SwagStatus tracks event-scoped swag assignment for a registration.
// It is event-scoped state: Transfer resets it.
type SwagStatus string

const (
	SwagNone      SwagStatus = "none"
	SwagAssigned  SwagStatus = "assigned"
	SwagCollected SwagStatus = "collected"
)

// IsValid checks if the swag status is one of the supported enum values.
func (s SwagStatus) IsValid() bool {
	return s == SwagNone || s == SwagAssigned || s == SwagCollected
}
