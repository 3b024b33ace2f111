package registration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gatepass/internal/event"
	"gatepass/internal/platform/kafka"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// EventSource supplies the event a submission targets.
type EventSource interface {
	Get(ctx context.Context, id domain.EventID) (*event.Event, error)
}

// AuditPublisher records lifecycle actions for operator forensics. Publishing
// is advisory; failures are logged, never returned.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, ev kafka.AuditEvent) error
}

// Service is the reconciliation engine plus the operator lifecycle surface.
type Service struct {
	store   Store
	events  EventSource
	audit   AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService creates the registration service. audit may be nil.
func NewService(store Store, events EventSource, audit AuditPublisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		events:  events,
		audit:   audit,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("gatepass/registration"),
	}
}

// Attendee is one additional anonymous-mode attendee, validated against the
// reduced schema: name and email only.
type Attendee struct {
	FirstName string
	LastName  string
	Email     string
}

// SubmitParams carries one submission. Verified must be the profile that came
// out of code validation (or a consumed redirect token); it is nil only for
// anonymous-mode submissions.
type SubmitParams struct {
	EventID    domain.EventID
	Verified   *qualification.Profile
	Fields     map[string]string
	Language   string
	Companions int
	Attendees  []Attendee
}

// SubmitResult reports what the reconciliation did. WasUpdated is
// authoritative: true means an existing row was overwritten, not inserted.
type SubmitResult struct {
	Registration *Registration
	WasUpdated   bool
	Created      []*Registration
}

// Well-known form field identifiers. Everything else lands in Extra.
const (
	fieldFirstName = "first_name"
	fieldLastName  = "last_name"
	fieldEmail     = "email"
	fieldPhone     = "phone"
)

// Submit reconciles a submission into rows. The closed check runs before any
// other work and short-circuits everything, verification included: a closed
// event rejects even a fully verified submission.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.submit",
		trace.WithAttributes(attribute.String("event.id", p.EventID.String())))
	defer span.End()
	started := time.Now()

	e, err := s.events.Get(ctx, p.EventID)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, dErrors.New(dErrors.CodeRegistrationClosed, "registration is closed")
	}

	if e.Mode.RequiresVerification() && p.Verified == nil {
		return nil, dErrors.New(dErrors.CodeVerificationRequired, "submission requires a verified identity")
	}
	if !e.Mode.AllowsDuplicates() && len(p.Attendees) > 0 {
		return nil, dErrors.WithFields(dErrors.CodeValidation,
			"additional attendees are only accepted for anonymous events", []string{"attendees"})
	}
	if p.Verified != nil && p.Verified.GuestAllowance > 0 && p.Companions > p.Verified.GuestAllowance {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"companion count exceeds the allowance of %d", p.Verified.GuestAllowance)
	}

	// The verified profile satisfies the identity fields even when the form
	// leaves them blank; a masked caller never typed their own address.
	if p.Verified != nil {
		p.Fields = backfillIdentity(p.Fields, p.Verified)
	}

	if missing := missingFields(e.RequiredFields, p.Fields); len(missing) > 0 {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "required fields are missing", missing)
	}

	primary, err := s.buildPrimary(ctx, e, p)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{}
	if e.Mode.AllowsDuplicates() {
		created, err := s.insertAnonymous(ctx, e, p, primary)
		if err != nil {
			return nil, err
		}
		result.Registration = primary
		result.Created = created
		s.metrics.IncRegistrationsCreated(len(created))
	} else {
		row, wasUpdated, err := s.store.Upsert(ctx, primary)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store registration")
		}
		result.Registration = row
		result.WasUpdated = wasUpdated
		if wasUpdated {
			s.metrics.IncRegistrationsUpdated()
		} else {
			s.metrics.IncRegistrationsCreated(1)
		}
	}

	span.SetAttributes(attribute.Bool("registration.was_updated", result.WasUpdated))
	s.publishAudit(ctx, "registration.submitted", result.Registration)
	s.metrics.ObserveSubmitDuration(time.Since(started))
	return result, nil
}

func (s *Service) buildPrimary(ctx context.Context, e *event.Event, p SubmitParams) (*Registration, error) {
	now := requestcontext.Now(ctx)

	firstName := strings.TrimSpace(p.Fields[fieldFirstName])
	lastName := strings.TrimSpace(p.Fields[fieldLastName])
	addr := strings.TrimSpace(p.Fields[fieldEmail])

	if p.Verified != nil {
		// The verified address is the identity; the form cannot override it.
		addr = p.Verified.Email
		if firstName == "" {
			firstName = p.Verified.FirstName
		}
		if lastName == "" {
			lastName = p.Verified.LastName
		}
	}
	if addr == "" {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "email is required", []string{fieldEmail})
	}

	r, err := New(domain.NewRegistrationID(), e.ID, firstName, lastName, addr, now)
	if err != nil {
		return nil, err
	}
	r.Phone = strings.TrimSpace(p.Fields[fieldPhone])
	r.Language = p.Language
	r.Companions = p.Companions
	r.AllowDuplicates = e.Mode.AllowsDuplicates()
	if p.Verified != nil {
		r.DistributorID = p.Verified.DistributorID
		r.VerifiedByDirectory = p.Verified.VerifiedByDirectory
	}
	r.Extra = extraFields(p.Fields)
	return r, nil
}

// insertAnonymous creates the primary row plus one row per additional
// attendee. Attendee rows validate against the reduced schema and share the
// submission's language.
func (s *Service) insertAnonymous(ctx context.Context, e *event.Event, p SubmitParams, primary *Registration) ([]*Registration, error) {
	now := requestcontext.Now(ctx)

	rows := []*Registration{primary}
	for i, a := range p.Attendees {
		if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "attendee %d is missing a name", i+1)
		}
		r, err := New(domain.NewRegistrationID(), e.ID, strings.TrimSpace(a.FirstName), strings.TrimSpace(a.LastName), a.Email, now)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "attendee %d has an invalid email", i+1)
		}
		r.Language = p.Language
		r.AllowDuplicates = true
		rows = append(rows, r)
	}

	for _, r := range rows {
		if err := s.store.Insert(ctx, r); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store registration")
		}
	}
	return rows, nil
}

// FetchExisting looks up the row a verified identity already holds, for
// pre-filling the form on a resumed flow.
func (s *Service) FetchExisting(ctx context.Context, eventID domain.EventID, claim qualification.IdentityClaim) (*Registration, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}
	r, err := s.store.FindByIdentity(ctx, eventID, email.Normalize(claim.Email), claim.DistributorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no existing registration")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registration lookup failed")
	}
	return r, nil
}

// Transfer moves a registration to another event in one transaction. Exactly
// the event-scoped state resets: checkedInAt, badgePrintedAt, swagStatus.
// Identity, companions, and answers travel untouched; failure leaves the
// original row exactly as it was.
func (s *Service) Transfer(ctx context.Context, id domain.RegistrationID, targetEventID domain.EventID) (*Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.transfer")
	defer span.End()

	target, err := s.events.Get(ctx, targetEventID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "target event not found")
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	r, err := s.store.Execute(ctx, id,
		func(r *Registration) error {
			if r.EventID == target.ID {
				return dErrors.New(dErrors.CodeTransferConflict, "registration is already on this event")
			}
			return nil
		},
		func(r *Registration) {
			r.ApplyTransfer(target.ID, now)
		},
	)
	if err != nil {
		return nil, wrapTransferErr(err)
	}

	s.publishAudit(ctx, "registration.transferred", r)
	return r, nil
}

// Cancel deletes the row outright. The identity is free to register again.
func (s *Service) Cancel(ctx context.Context, id domain.RegistrationID) error {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrapRegistrationErr(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return wrapRegistrationErr(err)
	}
	s.publishAudit(ctx, "registration.cancelled", r)
	return nil
}

// CheckIn marks the attendee present on site.
func (s *Service) CheckIn(ctx context.Context, id domain.RegistrationID) (*Registration, error) {
	now := requestcontext.Now(ctx)
	r, err := s.store.Execute(ctx, id,
		func(r *Registration) error { return r.CanCheckIn() },
		func(r *Registration) { r.ApplyCheckIn(now) },
	)
	if err != nil {
		return nil, wrapRegistrationErr(err)
	}
	s.publishAudit(ctx, "registration.checked_in", r)
	return r, nil
}

// MarkNotComing records a decline after registration.
func (s *Service) MarkNotComing(ctx context.Context, id domain.RegistrationID) (*Registration, error) {
	now := requestcontext.Now(ctx)
	r, err := s.store.Execute(ctx, id,
		func(r *Registration) error {
			if r.Status == domain.StatusNotComing {
				return dErrors.New(dErrors.CodeConflict, "attendee already declined")
			}
			return nil
		},
		func(r *Registration) { r.ApplyNotComing(now) },
	)
	if err != nil {
		return nil, wrapRegistrationErr(err)
	}
	s.publishAudit(ctx, "registration.not_coming", r)
	return r, nil
}

func (s *Service) publishAudit(ctx context.Context, action string, r *Registration) {
	if s.audit == nil {
		return
	}
	device := requestcontext.DeviceInfo(ctx)
	ev := kafka.AuditEvent{
		Action:         action,
		EventID:        r.EventID.String(),
		RegistrationID: r.ID.String(),
		RequestID:      requestcontext.RequestID(ctx),
		Browser:        device.Browser,
		OS:             device.OS,
		At:             requestcontext.Now(ctx),
	}
	if err := s.audit.PublishAudit(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed",
			"action", action,
			"error", err.Error(),
		)
	}
}

func backfillIdentity(fields map[string]string, verified *qualification.Profile) map[string]string {
	out := make(map[string]string, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	if strings.TrimSpace(out[fieldFirstName]) == "" {
		out[fieldFirstName] = verified.FirstName
	}
	if strings.TrimSpace(out[fieldLastName]) == "" {
		out[fieldLastName] = verified.LastName
	}
	out[fieldEmail] = verified.Email
	return out
}

func missingFields(required []string, fields map[string]string) []string {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(fields[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

var wellKnownFields = map[string]bool{
	fieldFirstName: true,
	fieldLastName:  true,
	fieldEmail:     true,
	fieldPhone:     true,
}

func extraFields(fields map[string]string) map[string]string {
	var extra map[string]string
	for k, v := range fields {
		if wellKnownFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = v
	}
	return extra
}

func wrapTransferErr(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeTransferConflict, "target event already has this attendee")
	}
	return wrapRegistrationErr(err)
}

func wrapRegistrationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registration store failure")
}
