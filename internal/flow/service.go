package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatepass/internal/event"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/qualification"
	"gatepass/internal/redirecttoken"
	"gatepass/internal/registration"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// EventSource supplies the event a flow runs against.
type EventSource interface {
	Get(ctx context.Context, id domain.EventID) (*event.Event, error)
}

// Service orchestrates flow sessions over the qualification, verification,
// redirect-token, and registration services.
type Service struct {
	sessions      Store
	events        EventSource
	qualification *qualification.Service
	verification  *verification.Service
	tokens        *redirecttoken.Service
	registrations *registration.Service
	signer        *LinkSigner
	metrics       *metrics.Metrics
	logger        *slog.Logger
	ttl           time.Duration
}

// NewService creates the flow service. A non-positive ttl falls back to one
// hour.
func NewService(
	sessions Store,
	events EventSource,
	q *qualification.Service,
	v *verification.Service,
	t *redirecttoken.Service,
	r *registration.Service,
	signer *LinkSigner,
	m *metrics.Metrics,
	logger *slog.Logger,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		sessions:      sessions,
		events:        events,
		qualification: q,
		verification:  v,
		tokens:        t,
		registrations: r,
		signer:        signer,
		metrics:       m,
		logger:        logger,
		ttl:           ttl,
	}
}

// Start opens a session against an event. The closed flag wins over
// everything, a signed identity link included: a closed event yields a
// terminal session no link can reopen. A valid link short-circuits to the
// form, but only through the same qualification resolution every other
// entry uses.
func (s *Service) Start(ctx context.Context, eventID domain.EventID, signedLink string) (*Session, error) {
	e, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	sess := &Session{
		ID:        domain.NewFlowID(),
		EventID:   eventID,
		Mode:      e.Mode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch {
	case e.Closed():
		s.terminate(sess, StateRegistrationClosed, "registration is closed")
	case e.Mode == domain.ModeOpenAnonymous:
		sess.State = StateForm
	default:
		sess.State = StateEmail
	}

	if signedLink != "" && !sess.State.Terminal() {
		s.applySignedLink(ctx, sess, signedLink)
	}

	if err := s.sessions.Put(ctx, sess, s.ttl); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store flow session")
	}
	return sess, nil
}

// applySignedLink upgrades the session to the form step when the link is
// valid and the bound identity qualifies. An invalid link is not an error;
// the registrant simply starts at the email step.
func (s *Service) applySignedLink(ctx context.Context, sess *Session, signedLink string) {
	addr, err := s.signer.Validate(signedLink, sess.EventID)
	if err != nil {
		s.logger.InfoContext(ctx, "signed link rejected",
			"event_id", sess.EventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		return
	}

	claim := qualification.IdentityClaim{Email: addr}
	profile, err := s.qualification.Resolve(ctx, sess.EventID, claim)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotQualified) {
			s.terminate(sess, StateNotQualified, dErrors.MessageOf(err))
		}
		return
	}

	sess.ClaimEmail = addr
	sess.Key = claim.Key()
	sess.Profile = profile
	sess.Verified = true
	sess.State = StateForm
	s.prefillExisting(ctx, sess)
}

// Get returns the current session.
func (s *Service) Get(ctx context.Context, id domain.FlowID) (*Session, error) {
	return s.load(ctx, id)
}

// SubmitEmail takes an identity claim and, when it qualifies, issues a code.
// Calling it again from the code step is the resend path.
func (s *Service) SubmitEmail(ctx context.Context, id domain.FlowID, claim qualification.IdentityClaim) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Mode == domain.ModeOpenAnonymous {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "this event does not verify email")
	}
	if err := sess.require(StateEmail, StateOTP); err != nil {
		return nil, err
	}

	profile, err := s.qualification.Resolve(ctx, sess.EventID, claim)
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotQualified):
			s.terminate(sess, StateNotQualified, dErrors.MessageOf(err))
			s.persist(ctx, sess)
		case dErrors.HasCode(err, dErrors.CodeRegistrationClosed):
			s.terminate(sess, StateRegistrationClosed, dErrors.MessageOf(err))
			s.persist(ctx, sess)
		}
		return nil, err
	}

	result, err := s.verification.Issue(ctx, verification.IssueParams{
		EventID: sess.EventID,
		Key:     claim.Key(),
		Profile: *profile,
	})
	if err != nil {
		// Rate limiting is recoverable; the session stays where it is.
		return nil, err
	}

	sess.ClaimEmail = claim.Email
	sess.ClaimDistributorID = claim.DistributorID
	sess.Key = claim.Key()
	sess.MaskedEmail = result.MaskedEmail
	sess.EmailMasked = result.EmailMasked
	sess.SessionToken = result.SessionToken
	sess.State = StateOTP
	sess.UpdatedAt = requestcontext.Now(ctx)

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// VerifyCode burns an attempt. A wrong or expired code keeps the session (and
// the pending form payload) intact; exhaustion drops back to the email step
// since the verification session is gone.
func (s *Service) VerifyCode(ctx context.Context, id domain.FlowID, code string) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.require(StateOTP); err != nil {
		return nil, err
	}

	ref := verification.IdentityRef{Email: sess.ClaimEmail}
	if sess.EmailMasked {
		ref = verification.IdentityRef{SessionToken: sess.SessionToken}
	}

	profile, err := s.verification.Validate(ctx, sess.EventID, ref, code)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeCodeExhausted) {
			sess.State = StateEmail
			sess.SessionToken = ""
			sess.UpdatedAt = requestcontext.Now(ctx)
			s.persist(ctx, sess)
		}
		return nil, err
	}

	sess.Profile = profile
	sess.Verified = true
	sess.State = StateForm
	sess.UpdatedAt = requestcontext.Now(ctx)
	s.prefillExisting(ctx, sess)

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ConsumeRedirect redeems a redirect token inside the flow, jumping straight
// to the form with the carried profile.
func (s *Service) ConsumeRedirect(ctx context.Context, id domain.FlowID, token, claimedEmail string) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.require(StateEmail, StateOTP, StateForm); err != nil {
		return nil, err
	}

	profile, err := s.tokens.Consume(ctx, token, sess.EventID, claimedEmail)
	if err != nil {
		return nil, err
	}

	sess.ClaimEmail = profile.Email
	sess.Key = qualification.IdentityClaim{Email: profile.Email}.Key()
	sess.Profile = profile
	sess.Verified = true
	sess.State = StateForm
	sess.UpdatedAt = requestcontext.Now(ctx)
	s.prefillExisting(ctx, sess)

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// FormInput is the submitted form payload.
type FormInput struct {
	Fields     map[string]string
	Language   string
	Companions int
	Attendees  []registration.Attendee
}

// Submit hands the payload to the reconciliation engine. The payload is
// stored on the session before anything can fail, so every recoverable
// rejection leaves it ready for the next attempt.
func (s *Service) Submit(ctx context.Context, id domain.FlowID, input FormInput) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.require(StateEmail, StateOTP, StateForm); err != nil {
		return nil, err
	}

	sess.PendingFields = input.Fields
	sess.PendingLanguage = input.Language
	sess.PendingCompanions = input.Companions
	sess.UpdatedAt = requestcontext.Now(ctx)

	if sess.Mode.RequiresVerification() && !sess.Verified {
		s.persist(ctx, sess)
		return nil, dErrors.New(dErrors.CodeVerificationRequired, "verify your email before submitting")
	}

	result, err := s.registrations.Submit(ctx, registration.SubmitParams{
		EventID:    sess.EventID,
		Verified:   sess.Profile,
		Fields:     input.Fields,
		Language:   input.Language,
		Companions: input.Companions,
		Attendees:  input.Attendees,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRegistrationClosed) {
			s.terminate(sess, StateRegistrationClosed, dErrors.MessageOf(err))
		}
		s.persist(ctx, sess)
		return nil, err
	}

	sess.State = StateSuccess
	sess.RegistrationID = result.Registration.ID.String()
	sess.WasUpdated = result.WasUpdated
	sess.PendingFields = nil
	s.metrics.IncFlowTerminal(string(StateSuccess))

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reset is the "use a different email" path: the verification session is
// discarded and the flow returns to the email step, keeping the pending form
// payload.
func (s *Service) Reset(ctx context.Context, id domain.FlowID) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "flow already finished in state %s", sess.State)
	}

	if sess.Key != "" {
		if err := s.verification.Reset(ctx, sess.EventID, sess.Key); err != nil {
			return nil, err
		}
	}

	sess.ClaimEmail = ""
	sess.ClaimDistributorID = ""
	sess.Key = ""
	sess.MaskedEmail = ""
	sess.EmailMasked = false
	sess.SessionToken = ""
	sess.Profile = nil
	sess.Verified = false
	if sess.Mode == domain.ModeOpenAnonymous {
		sess.State = StateForm
	} else {
		sess.State = StateEmail
	}
	sess.UpdatedAt = requestcontext.Now(ctx)

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// prefillExisting pre-loads the form from the identity's existing
// registration. Only safe once the identity is verified; an unverified
// caller must never see another registrant's answers.
func (s *Service) prefillExisting(ctx context.Context, sess *Session) {
	if sess.Profile == nil {
		return
	}
	existing, err := s.registrations.FetchExisting(ctx, sess.EventID,
		qualification.IdentityClaim{Email: sess.Profile.Email})
	if err != nil {
		return
	}

	if sess.PendingFields == nil {
		sess.PendingFields = make(map[string]string)
	}
	prefill := map[string]string{
		"first_name": existing.FirstName,
		"last_name":  existing.LastName,
		"phone":      existing.Phone,
	}
	for k, v := range existing.Extra {
		prefill[k] = v
	}
	for k, v := range prefill {
		if sess.PendingFields[k] == "" && v != "" {
			sess.PendingFields[k] = v
		}
	}
	if sess.PendingLanguage == "" {
		sess.PendingLanguage = existing.Language
	}
}

func (s *Service) terminate(sess *Session, state State, reason string) {
	sess.State = state
	sess.Reason = reason
	s.metrics.IncFlowTerminal(string(state))
}

func (s *Service) load(ctx context.Context, id domain.FlowID) (*Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeNotFound, "flow session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load flow session")
	}
	return sess, nil
}

// persist writes the session back; failures here are internal errors the
// caller surfaces, except on paths already returning a domain error, where
// the write is best-effort.
func (s *Service) persist(ctx context.Context, sess *Session) error {
	if err := s.sessions.Put(ctx, sess, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "flow session write failed",
			"flow_id", sess.ID.String(),
			"error", err.Error(),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not store flow session")
	}
	return nil
}
