package redirecttoken

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
	"gatepass/pkg/secrets"
)

// Service issues and consumes redirect tokens.
type Service struct {
	tokens Store
	ttl    time.Duration
}

// NewService creates the redirect token service. A non-positive ttl falls back
// to five minutes.
func NewService(tokens Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{tokens: tokens, ttl: ttl}
}

// Issue mints a token for an already-verified profile. Issuance is not a
// qualification bypass: callers must only pass profiles that came out of a
// completed verification.
func (s *Service) Issue(ctx context.Context, eventID domain.EventID, profile qualification.Profile) (string, error) {
	if eventID.IsNil() {
		return "", dErrors.New(dErrors.CodeBadRequest, "event id is required")
	}
	if profile.Email == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile has no email to bind")
	}

	value, err := secrets.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token")
	}

	now := requestcontext.Now(ctx)
	t := &Token{
		Value:     value,
		EventID:   eventID,
		Email:     email.Normalize(profile.Email),
		Profile:   profile,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.tokens.Put(ctx, t, s.ttl); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store token")
	}
	return value, nil
}

// Consume redeems a token exactly once, checking the email and event binding.
// A mismatched binding burns the token anyway; a guessed value must not get a
// second try against different bindings.
func (s *Service) Consume(ctx context.Context, value string, eventID domain.EventID, claimedEmail string) (*qualification.Profile, error) {
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token is required")
	}

	t, err := s.tokens.Consume(ctx, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "token is invalid or already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not consume token")
	}

	if t.Expired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeTokenExpired, "token has expired")
	}
	if t.EventID != eventID || t.Email != email.Normalize(claimedEmail) {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token does not match this registration")
	}

	profile := t.Profile
	return &profile, nil
}
