package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatepass/internal/platform/kafka"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/email"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
	"gatepass/pkg/secrets"
)

// Mailer hands issued codes to the delivery pipeline.
type Mailer interface {
	PublishEmail(ctx context.Context, msg kafka.EmailMessage) error
}

// Options tunes code issuance. Zero values fall back to defaults.
type Options struct {
	CodeTTL     time.Duration
	CodeLength  int
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.CodeTTL <= 0 {
		o.CodeTTL = 10 * time.Minute
	}
	if o.CodeLength <= 0 {
		o.CodeLength = 6
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// Service issues and validates one-time codes.
type Service struct {
	sessions Store
	throttle Throttle
	mailer   Mailer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
}

// NewService creates the verification service. A nil mailer disables delivery
// (codes are still issued, for tests and local runs).
func NewService(sessions Store, throttle Throttle, mailer Mailer, m *metrics.Metrics, logger *slog.Logger, opts Options) *Service {
	return &Service{
		sessions: sessions,
		throttle: throttle,
		mailer:   mailer,
		metrics:  m,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// IssueParams captures the resolved identity a code is issued for. Profile
// must come from qualification resolution; issuance itself never re-checks
// eligibility.
type IssueParams struct {
	EventID domain.EventID
	Key     string
	Profile qualification.Profile
}

// Issue creates a fresh code for the identity, replacing any live one, and
// hands it to the mail pipeline. Resending is the same operation. Delivery
// failure is logged and swallowed; the code stays valid and delivery is the
// mail worker's problem to retry.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*IssueResult, error) {
	if p.EventID.IsNil() || p.Key == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "event id and identity are required")
	}
	if p.Profile.Email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile has no delivery address")
	}

	allowed, err := s.throttle.Allow(ctx, p.EventID.String()+":"+p.Key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issue throttle failed")
	}
	if !allowed {
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many codes requested, wait before retrying")
	}

	code, err := secrets.NumericCode(s.opts.CodeLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate code")
	}
	hash, err := secrets.Hash(code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not hash code")
	}

	now := requestcontext.Now(ctx)
	sess := &Session{
		EventID:     p.EventID,
		Key:         p.Key,
		CodeHash:    hash,
		Email:       email.Normalize(p.Profile.Email),
		MaskedEmail: p.Profile.MaskedEmail,
		EmailMasked: p.Profile.EmailMasked,
		Profile:     p.Profile,
		MaxAttempts: s.opts.MaxAttempts,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.opts.CodeTTL),
	}
	if sess.EmailMasked {
		token, err := secrets.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate session token")
		}
		sess.SessionToken = token
	}

	if err := s.sessions.Put(ctx, sess, s.opts.CodeTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store verification session")
	}

	if s.mailer != nil {
		msg := kafka.EmailMessage{
			To:        sess.Email,
			EventID:   p.EventID.String(),
			Code:      code,
			ExpiresAt: sess.ExpiresAt,
		}
		if err := s.mailer.PublishEmail(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "code email dispatch failed",
				"event_id", p.EventID.String(),
				"error", err.Error(),
			)
		}
	}

	s.metrics.IncCodesIssued()
	return &IssueResult{
		MaskedEmail:  sess.MaskedEmail,
		EmailMasked:  sess.EmailMasked,
		SessionToken: sess.SessionToken,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Validate burns an attempt against the identity's live code. On success the
// session is destroyed (codes are single-use) and the qualification snapshot
// is returned. The error taxonomy distinguishes no-session, expired,
// exhausted, and plain mismatch so the flow can react differently to each.
func (s *Service) Validate(ctx context.Context, eventID domain.EventID, ref IdentityRef, code string) (*qualification.Profile, error) {
	if code == "" {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "code is required", []string{"code"})
	}

	sess, err := s.resolveSession(ctx, eventID, ref)
	if err != nil {
		return nil, err
	}

	if sess.Expired(requestcontext.Now(ctx)) {
		_, _ = s.sessions.Delete(ctx, sess.EventID, sess.Key)
		s.metrics.IncCodeValidation("expired")
		return nil, dErrors.New(dErrors.CodeCodeExpired, "code has expired, request a new one")
	}

	attempts, err := s.sessions.IncrementAttempts(ctx, sess.EventID, sess.Key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeVerificationRequired, "no active code for this identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not record attempt")
	}
	if attempts > sess.MaxAttempts {
		_, _ = s.sessions.Delete(ctx, sess.EventID, sess.Key)
		s.metrics.IncCodeValidation("exhausted")
		return nil, dErrors.New(dErrors.CodeCodeExhausted, "too many attempts, request a new code")
	}

	if err := secrets.Verify(code, sess.CodeHash); err != nil {
		if attempts >= sess.MaxAttempts {
			_, _ = s.sessions.Delete(ctx, sess.EventID, sess.Key)
			s.metrics.IncCodeValidation("exhausted")
			return nil, dErrors.New(dErrors.CodeCodeExhausted, "too many attempts, request a new code")
		}
		s.metrics.IncCodeValidation("mismatch")
		return nil, dErrors.Newf(dErrors.CodeInvalidCode, "incorrect code, %d attempts remaining", sess.MaxAttempts-attempts)
	}

	// Consuming is deleting. Only the caller whose delete actually removed
	// the session wins; a racing duplicate with the same correct code loses.
	consumed, err := s.sessions.Delete(ctx, sess.EventID, sess.Key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not consume verification session")
	}
	if !consumed {
		s.metrics.IncCodeValidation("already_consumed")
		return nil, dErrors.New(dErrors.CodeVerificationRequired, "no active code for this identity")
	}

	s.metrics.IncCodeValidation("success")
	profile := sess.Profile
	return &profile, nil
}

// Reset discards the identity's live session without consuming it, for the
// "use a different email" path.
func (s *Service) Reset(ctx context.Context, eventID domain.EventID, key string) error {
	if _, err := s.sessions.Delete(ctx, eventID, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not discard verification session")
	}
	return nil
}

func (s *Service) resolveSession(ctx context.Context, eventID domain.EventID, ref IdentityRef) (*Session, error) {
	var (
		sess *Session
		err  error
	)
	switch {
	case ref.SessionToken != "":
		sess, err = s.sessions.GetByToken(ctx, ref.SessionToken)
	case ref.Email != "":
		sess, err = s.sessions.Get(ctx, eventID, email.Normalize(ref.Email))
	default:
		return nil, dErrors.WithFields(dErrors.CodeValidation, "email or session token is required", []string{"email", "session_token"})
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeVerificationRequired, "no active code for this identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load verification session")
	}
	if !eventID.IsNil() && sess.EventID != eventID {
		return nil, dErrors.New(dErrors.CodeVerificationRequired, "no active code for this identity")
	}
	return sess, nil
}
