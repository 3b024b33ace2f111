// Package registration is the reconciliation core: it turns verified
// submissions into rows, upserting for verified modes and always inserting
// for anonymous ones, and owns the operator lifecycle (transfer, cancel,
// check-in).
package registration

import (
	"time"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
)

// Registration is one attendee row.
type Registration struct {
	ID      domain.RegistrationID
	EventID domain.EventID

	FirstName     string
	LastName      string
	Email         string
	DistributorID string
	Phone         string

	Status     domain.RegistrationStatus
	SwagStatus domain.SwagStatus

	// VerifiedByDirectory carries the qualification provenance into the row.
	VerifiedByDirectory bool

	Language   string
	Companions int

	// AllowDuplicates is latched at insert for anonymous rows. The storage
	// uniqueness rule on (event, email) only binds rows where it is false.
	AllowDuplicates bool

	RegisteredAt time.Time
	LastModified time.Time

	// Event-scoped state. Transfer resets exactly these three fields.
	CheckedInAt    *time.Time
	BadgePrintedAt *time.Time

	// Free-form answers beyond the well-known identity fields, keyed by the
	// event's schema identifiers.
	Extra map[string]string
}

// New validates and constructs a Registration.
func New(id domain.RegistrationID, eventID domain.EventID, firstName, lastName, addr string, now time.Time) (*Registration, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "registration id is required")
	}
	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	if !email.Valid(addr) {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "invalid email address", []string{"email"})
	}
	return &Registration{
		ID:           id,
		EventID:      eventID,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email.Normalize(addr),
		Status:       domain.StatusRegistered,
		SwagStatus:   domain.SwagNone,
		RegisteredAt: now,
		LastModified: now,
	}, nil
}

// CanCheckIn validates the check-in transition.
func (r *Registration) CanCheckIn() error {
	switch r.Status {
	case domain.StatusCheckedIn:
		return dErrors.New(dErrors.CodeConflict, "already checked in")
	case domain.StatusNotComing:
		return dErrors.New(dErrors.CodeConflict, "attendee has declined")
	}
	return nil
}

// ApplyCheckIn marks the attendee present.
func (r *Registration) ApplyCheckIn(now time.Time) {
	r.Status = domain.StatusCheckedIn
	r.CheckedInAt = &now
	r.LastModified = now
}

// ApplyNotComing records a decline.
func (r *Registration) ApplyNotComing(now time.Time) {
	r.Status = domain.StatusNotComing
	r.LastModified = now
}

// ApplyTransfer moves the row to another event, resetting the event-scoped
// state and nothing else. Identity, companions, and answers travel with it.
func (r *Registration) ApplyTransfer(target domain.EventID, now time.Time) {
	r.EventID = target
	r.CheckedInAt = nil
	r.BadgePrintedAt = nil
	r.SwagStatus = domain.SwagNone
	if r.Status == domain.StatusCheckedIn {
		r.Status = domain.StatusRegistered
	}
	r.LastModified = now
}
