package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// Service orchestrates event lifecycle management for operators.
type Service struct {
	events Store
}

// NewService creates the event service.
func NewService(events Store) *Service {
	return &Service{events: events}
}

// CreateParams carries the admin-supplied event definition.
type CreateParams struct {
	Name               string
	Mode               string
	Capacity           int
	RequiredFields     []string
	QualificationStart *time.Time
	QualificationEnd   *time.Time
}

// Create validates and persists a new event.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Event, error) {
	mode, err := domain.ParseRegistrationMode(p.Mode)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(p.RequiredFields))
	for _, f := range p.RequiredFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	now := requestcontext.Now(ctx)
	e, err := New(domain.NewEventID(), strings.TrimSpace(p.Name), mode, p.Capacity, fields, now)
	if err != nil {
		return nil, err
	}
	if err := e.SetQualificationWindow(p.QualificationStart, p.QualificationEnd, now); err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, e); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "event already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
	}
	return e, nil
}

// Get retrieves an event by id.
func (s *Service) Get(ctx context.Context, id domain.EventID) (*Event, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "event id is required")
	}
	e, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, wrapEventErr(err)
	}
	return e, nil
}

// Close latches the registration-closed flag. One-way: there is no reopen.
func (s *Service) Close(ctx context.Context, id domain.EventID) (*Event, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "event id is required")
	}
	now := requestcontext.Now(ctx)
	e, err := s.events.Execute(ctx, id,
		func(e *Event) error {
			if err := e.CanClose(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "registration already closed")
				}
				return err
			}
			return nil
		},
		func(e *Event) {
			e.ApplyClose(now)
		},
	)
	if err != nil {
		return nil, wrapEventErr(err)
	}
	return e, nil
}

func wrapEventErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "event store failure")
}
