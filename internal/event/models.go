// Package event holds the Event aggregate: the per-event switches the
// registration core reads (mode, closed flag, qualification window, required
// field schema) and the admin transitions that flip them.
package event

import (
	"time"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// Event is immutable to registrants; only admin transitions mutate it.
type Event struct {
	ID   domain.EventID
	Name string
	Mode domain.RegistrationMode

	// RequiresQualification gates registration on the qualified list.
	// Always true for qualified_verified; settable for open modes when an
	// event wants the list consulted only for provenance.
	RequiresQualification bool

	// RegistrationClosedAt, once set, rejects every further submission of
	// any kind. There is no reopen transition.
	RegistrationClosedAt *time.Time

	QualificationStart *time.Time
	QualificationEnd   *time.Time

	Capacity int

	// RequiredFields is the admin-configured form schema for full
	// submissions. Additional anonymous attendees validate against the
	// reduced schema instead (see registration package).
	RequiredFields []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New validates and constructs an Event.
func New(id domain.EventID, name string, mode domain.RegistrationMode, capacity int, requiredFields []string, now time.Time) (*Event, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event name is required")
	}
	if !mode.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid registration mode")
	}
	if capacity < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "capacity cannot be negative")
	}
	return &Event{
		ID:                    id,
		Name:                  name,
		Mode:                  mode,
		RequiresQualification: mode == domain.ModeQualifiedVerified,
		Capacity:              capacity,
		RequiredFields:        requiredFields,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Closed reports whether registration has been closed. The flag is a one-way
// latch: set means closed, regardless of clock.
func (e *Event) Closed() bool {
	return e.RegistrationClosedAt != nil
}

// QualificationWindowOpen reports whether now falls inside the configured
// qualification window. An unset bound does not constrain.
func (e *Event) QualificationWindowOpen(now time.Time) bool {
	if e.QualificationStart != nil && now.Before(*e.QualificationStart) {
		return false
	}
	if e.QualificationEnd != nil && now.After(*e.QualificationEnd) {
		return false
	}
	return true
}

// CanClose validates the close transition.
func (e *Event) CanClose() error {
	if e.Closed() {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration already closed")
	}
	return nil
}

// ApplyClose latches the closed flag.
func (e *Event) ApplyClose(now time.Time) {
	e.RegistrationClosedAt = &now
	e.UpdatedAt = now
}

// SetQualificationWindow validates and applies the qualification window.
func (e *Event) SetQualificationWindow(start, end *time.Time, now time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return dErrors.New(dErrors.CodeInvalidInput, "qualification window end precedes start")
	}
	e.QualificationStart = start
	e.QualificationEnd = end
	e.UpdatedAt = now
	return nil
}
