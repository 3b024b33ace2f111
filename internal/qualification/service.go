package qualification

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gatepass/internal/event"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// EventSource supplies the event whose rules govern a resolution.
type EventSource interface {
	Get(ctx context.Context, id domain.EventID) (*event.Event, error)
}

// Service resolves identity claims against the qualified list and manages the
// list itself for operators.
type Service struct {
	store     Store
	directory Directory
	events    EventSource
	logger    *slog.Logger
}

// NewService creates the qualification service. A nil directory disables
// provenance upgrades.
func NewService(store Store, directory Directory, events EventSource, logger *slog.Logger) *Service {
	if directory == nil {
		directory = NoopDirectory{}
	}
	return &Service{store: store, directory: directory, events: events, logger: logger}
}

// Resolve checks a claim against the event's rules and returns the profile the
// caller is entitled to see. Distributor id takes precedence over email when
// both are claimed; a caller who claimed only a distributor id gets a masked
// profile because they have not proven control of the address on file.
func (s *Service) Resolve(ctx context.Context, eventID domain.EventID, claim IdentityClaim) (*Profile, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	e, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, dErrors.New(dErrors.CodeRegistrationClosed, "registration is closed")
	}

	if !e.RequiresQualification {
		return s.openProfile(claim), nil
	}

	if !e.QualificationWindowOpen(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeNotQualified, "qualification window is not open")
	}

	q, err := s.lookup(ctx, eventID, claim)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotQualified, "identity is not on the qualified list")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "qualified list lookup failed")
	}

	p := &Profile{
		FirstName:      q.FirstName,
		LastName:       q.LastName,
		Email:          q.Email,
		DistributorID:  q.DistributorID,
		GuestAllowance: q.GuestAllowance,
	}
	// The caller only sees the address on file if they claimed that exact
	// address. A distributor-id match with a missing or different email has
	// not proven control of it, so the profile goes out masked.
	if email.Normalize(claim.Email) != q.Email {
		p.EmailMasked = true
		p.MaskedEmail = email.Mask(q.Email)
	}

	s.upgradeProvenance(ctx, claim, p)
	return p, nil
}

// lookup applies the claim precedence rule: distributor id first, email second.
func (s *Service) lookup(ctx context.Context, eventID domain.EventID, claim IdentityClaim) (*QualifiedRegistrant, error) {
	if claim.DistributorID != "" {
		q, err := s.store.FindByDistributorID(ctx, eventID, claim.DistributorID)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) || claim.Email == "" {
			return nil, err
		}
	}
	return s.store.FindByEmail(ctx, eventID, email.Normalize(claim.Email))
}

// openProfile builds the trivial profile for events that do not consult the
// qualified list. Names are derived from the address until the form replaces
// them.
func (s *Service) openProfile(claim IdentityClaim) *Profile {
	p := &Profile{
		Email:         email.Normalize(claim.Email),
		DistributorID: claim.DistributorID,
	}
	if claim.Email != "" {
		p.FirstName, p.LastName = email.DeriveNameFromEmail(claim.Email)
	} else {
		p.FirstName, p.LastName = "Guest", "Guest"
	}
	return p
}

// upgradeProvenance consults the external directory. Directory failures are
// logged and swallowed; eligibility never depends on it.
func (s *Service) upgradeProvenance(ctx context.Context, claim IdentityClaim, p *Profile) {
	identity, err := s.directory.Lookup(ctx, claim)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "directory lookup failed", "error", err.Error())
		}
		return
	}
	if identity != nil {
		p.VerifiedByDirectory = true
	}
}

// ImportEntry is one row of an admin qualified-list upload.
type ImportEntry struct {
	FirstName      string
	LastName       string
	Email          string
	DistributorID  string
	GuestAllowance int
}

// ImportResult reports per-upload counts. Rejected rows carry the offending
// email so operators can fix the source file.
type ImportResult struct {
	Imported int
	Skipped  []string
}

// Import adds entries to an event's qualified list. Duplicate emails within
// the event are skipped, not fatal; invalid rows reject the whole upload.
func (s *Service) Import(ctx context.Context, eventID domain.EventID, entries []ImportEntry) (*ImportResult, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no entries to import")
	}

	now := requestcontext.Now(ctx)
	result := &ImportResult{}
	for _, entry := range entries {
		addr := email.Normalize(entry.Email)
		if !email.Valid(addr) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid email address %q", email.Mask(entry.Email))
		}
		q := &QualifiedRegistrant{
			ID:             domain.NewRegistrantID(),
			EventID:        eventID,
			FirstName:      strings.TrimSpace(entry.FirstName),
			LastName:       strings.TrimSpace(entry.LastName),
			Email:          addr,
			DistributorID:  strings.TrimSpace(entry.DistributorID),
			GuestAllowance: entry.GuestAllowance,
			CreatedAt:      now,
		}
		if err := s.store.Create(ctx, q); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				result.Skipped = append(result.Skipped, addr)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to import qualified registrant")
		}
		result.Imported++
	}
	return result, nil
}

// List returns an event's full qualified list for operators.
func (s *Service) List(ctx context.Context, eventID domain.EventID) ([]*QualifiedRegistrant, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list qualified registrants")
	}
	return list, nil
}

// Remove deletes a single qualified-list entry.
func (s *Service) Remove(ctx context.Context, id domain.RegistrantID) error {
	if id.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "registrant id is required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "qualified registrant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete qualified registrant")
	}
	return nil
}
