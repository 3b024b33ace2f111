package flow_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatepass/internal/event"
	"gatepass/internal/flow"
	"gatepass/internal/platform/kafka"
	"gatepass/internal/qualification"
	"gatepass/internal/redirecttoken"
	"gatepass/internal/registration"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

// captureMailer records the last issued code instead of delivering it.
type captureMailer struct {
	lastCode string
	lastTo   string
}

func (m *captureMailer) PublishEmail(ctx context.Context, msg kafka.EmailMessage) error {
	m.lastCode = msg.Code
	m.lastTo = msg.To
	return nil
}

// FlowSuite wires the full stack on in-memory stores and walks entire
// journeys through the state machine.
type FlowSuite struct {
	suite.Suite

	events        *event.Service
	qualStore     *qualification.InMemoryStore
	regStore      *registration.InMemoryStore
	mailer        *captureMailer
	tokens        *redirecttoken.Service
	registrations *registration.Service
	service       *flow.Service
	signer        *flow.LinkSigner

	now time.Time
	ctx context.Context
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.events = event.NewService(event.NewInMemoryStore())
	s.qualStore = qualification.NewInMemoryStore()
	s.regStore = registration.NewInMemoryStore()
	s.mailer = &captureMailer{}

	qual := qualification.NewService(s.qualStore, nil, s.events, logger)
	verify := verification.NewService(
		verification.NewInMemoryStore(),
		verification.NewInMemoryThrottle(10, time.Minute),
		s.mailer,
		nil,
		logger,
		verification.Options{MaxAttempts: 3},
	)
	s.tokens = redirecttoken.NewService(redirecttoken.NewInMemoryStore(), 5*time.Minute)
	s.registrations = registration.NewService(s.regStore, s.events, nil, nil, logger)
	s.signer = flow.NewLinkSigner("test-signing-key", time.Hour)

	s.service = flow.NewService(
		flow.NewInMemoryStore(),
		s.events,
		qual,
		verify,
		s.tokens,
		s.registrations,
		s.signer,
		nil,
		logger,
		time.Hour,
	)

	s.now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *FlowSuite) createEvent(mode domain.RegistrationMode, required ...string) *event.Event {
	e, err := s.events.Create(s.ctx, event.CreateParams{
		Name:           "Leaders Summit",
		Mode:           mode.String(),
		Capacity:       500,
		RequiredFields: required,
	})
	s.Require().NoError(err)
	return e
}

func (s *FlowSuite) qualify(eventID domain.EventID, distributorID string) {
	err := s.qualStore.Create(s.ctx, &qualification.QualifiedRegistrant{
		ID:            domain.NewRegistrantID(),
		EventID:       eventID,
		FirstName:     "Maria",
		LastName:      "Lopez",
		Email:         "maria.lopez@example.com",
		DistributorID: distributorID,
		CreatedAt:     s.now,
	})
	s.Require().NoError(err)
}

func (s *FlowSuite) TestQualifiedVerifiedJourney() {
	e := s.createEvent(domain.ModeQualifiedVerified, "first_name", "last_name", "email")
	s.qualify(e.ID, "")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)
	s.Equal(flow.StateEmail, sess.State)

	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "maria.lopez@example.com"})
	s.Require().NoError(err)
	s.Equal(flow.StateOTP, sess.State)
	s.Equal("maria.lopez@example.com", s.mailer.lastTo)
	s.Require().Len(s.mailer.lastCode, 6)

	// A wrong code is recoverable.
	wrong := "000000"
	if wrong == s.mailer.lastCode {
		wrong = "000001"
	}
	_, err = s.service.VerifyCode(s.ctx, sess.ID, wrong)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))

	sess, err = s.service.VerifyCode(s.ctx, sess.ID, s.mailer.lastCode)
	s.Require().NoError(err)
	s.Equal(flow.StateForm, sess.State)
	s.True(sess.Verified)

	sess, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{
		Fields: map[string]string{"first_name": "Maria", "last_name": "Lopez"},
	})
	s.Require().NoError(err)
	s.Equal(flow.StateSuccess, sess.State)
	s.NotEmpty(sess.RegistrationID)
	s.False(sess.WasUpdated)

	rows, err := s.regStore.ListByEvent(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("maria.lopez@example.com", rows[0].Email)
}

func (s *FlowSuite) TestNotQualifiedIsTerminal() {
	e := s.createEvent(domain.ModeQualifiedVerified)

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)

	_, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "stranger@example.com"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotQualified))
	s.Empty(s.mailer.lastCode, "no code may be issued to an unqualified identity")

	sess, err = s.service.Get(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(flow.StateNotQualified, sess.State)
	s.NotEmpty(sess.Reason)

	_, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "stranger@example.com"})
	s.Error(err, "terminal sessions accept nothing")
}

func (s *FlowSuite) TestMaskedDistributorJourney() {
	e := s.createEvent(domain.ModeQualifiedVerified, "email")
	s.qualify(e.ID, "D-4471")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)

	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{DistributorID: "D-4471"})
	s.Require().NoError(err)
	s.Equal(flow.StateOTP, sess.State)
	s.True(sess.EmailMasked)
	s.Equal("m*********z@e*****e.com", sess.MaskedEmail)
	s.Empty(sess.ClaimEmail)
	s.Equal("maria.lopez@example.com", s.mailer.lastTo, "delivery still uses the true address")

	sess, err = s.service.VerifyCode(s.ctx, sess.ID, s.mailer.lastCode)
	s.Require().NoError(err)
	s.Equal(flow.StateForm, sess.State)
	s.Equal("maria.lopez@example.com", sess.Profile.Email, "control of the address is now proven")
}

func (s *FlowSuite) TestOpenVerifiedGatedSubmit() {
	e := s.createEvent(domain.ModeOpenVerified, "first_name", "last_name", "email")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)
	s.Equal(flow.StateEmail, sess.State)

	// Optimistic form: payload lands before verification, submit is gated.
	fields := map[string]string{"first_name": "Jane", "last_name": "Doe", "email": "jane.doe@example.com"}
	_, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{Fields: fields})
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))

	sess, err = s.service.Get(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(fields, sess.PendingFields, "recoverable rejection preserves the payload")

	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "jane.doe@example.com"})
	s.Require().NoError(err)
	sess, err = s.service.VerifyCode(s.ctx, sess.ID, s.mailer.lastCode)
	s.Require().NoError(err)

	sess, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{Fields: fields})
	s.Require().NoError(err)
	s.Equal(flow.StateSuccess, sess.State)
}

func (s *FlowSuite) TestAnonymousJourney() {
	e := s.createEvent(domain.ModeOpenAnonymous, "first_name", "last_name", "email")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)
	s.Equal(flow.StateForm, sess.State, "anonymous flows skip verification entirely")

	sess, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{
		Fields:   map[string]string{"first_name": "Ana", "last_name": "Silva", "email": "ana@example.com"},
		Language: "pt",
		Attendees: []registration.Attendee{
			{FirstName: "Rui", LastName: "Silva", Email: "rui@example.com"},
		},
	})
	s.Require().NoError(err)
	s.Equal(flow.StateSuccess, sess.State)

	rows, err := s.regStore.ListByEvent(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Len(rows, 2)
}

func (s *FlowSuite) TestClosedEventIsTerminalAtStart() {
	e := s.createEvent(domain.ModeQualifiedVerified)
	_, err := s.events.Close(s.ctx, e.ID)
	s.Require().NoError(err)

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)
	s.Equal(flow.StateRegistrationClosed, sess.State)

	_, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "maria.lopez@example.com"})
	s.True(dErrors.HasCode(err, dErrors.CodeRegistrationClosed))
}

func (s *FlowSuite) TestSignedLinkShortCircuits() {
	e := s.createEvent(domain.ModeQualifiedVerified, "email")
	s.qualify(e.ID, "")

	link, err := s.signer.Sign(e.ID, "maria.lopez@example.com", s.now)
	s.Require().NoError(err)

	sess, err := s.service.Start(s.ctx, e.ID, link)
	s.Require().NoError(err)
	s.Equal(flow.StateForm, sess.State)
	s.True(sess.Verified)

	s.Run("link for an unqualified identity terminates", func() {
		badLink, err := s.signer.Sign(e.ID, "stranger@example.com", s.now)
		s.Require().NoError(err)

		sess, err := s.service.Start(s.ctx, e.ID, badLink)
		s.Require().NoError(err)
		s.Equal(flow.StateNotQualified, sess.State)
	})

	s.Run("garbage link falls back to the email step", func() {
		sess, err := s.service.Start(s.ctx, e.ID, "not-a-jwt")
		s.Require().NoError(err)
		s.Equal(flow.StateEmail, sess.State)
	})

	s.Run("closed event beats a valid link", func() {
		_, err := s.events.Close(s.ctx, e.ID)
		s.Require().NoError(err)

		sess, err := s.service.Start(s.ctx, e.ID, link)
		s.Require().NoError(err)
		s.Equal(flow.StateRegistrationClosed, sess.State)
	})
}

func (s *FlowSuite) TestResetPreservesPendingPayload() {
	e := s.createEvent(domain.ModeOpenVerified, "email")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)

	fields := map[string]string{"email": "jane.doe@example.com", "company": "Acme"}
	_, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{Fields: fields})
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))

	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "jane.doe@example.com"})
	s.Require().NoError(err)
	oldCode := s.mailer.lastCode

	sess, err = s.service.Reset(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(flow.StateEmail, sess.State)
	s.False(sess.Verified)
	s.Equal(fields, sess.PendingFields, "reset keeps the form payload")

	// The discarded session's code is dead.
	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "other@example.com"})
	s.Require().NoError(err)
	_, err = s.service.VerifyCode(s.ctx, sess.ID, oldCode)
	if oldCode != s.mailer.lastCode {
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
}

func (s *FlowSuite) TestRedirectTokenIntoFlow() {
	e := s.createEvent(domain.ModeOpenVerified, "email")

	profile := qualification.Profile{FirstName: "Jane", LastName: "Doe", Email: "jane.doe@example.com"}
	token, err := s.tokens.Issue(s.ctx, e.ID, profile)
	s.Require().NoError(err)

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)

	sess, err = s.service.ConsumeRedirect(s.ctx, sess.ID, token, "jane.doe@example.com")
	s.Require().NoError(err)
	s.Equal(flow.StateForm, sess.State)
	s.True(sess.Verified)

	sess, err = s.service.Submit(s.ctx, sess.ID, flow.FormInput{
		Fields: map[string]string{"email": "jane.doe@example.com"},
	})
	s.Require().NoError(err)
	s.Equal(flow.StateSuccess, sess.State)
}

func (s *FlowSuite) TestExhaustionDropsBackToEmail() {
	e := s.createEvent(domain.ModeQualifiedVerified)
	s.qualify(e.ID, "")

	sess, err := s.service.Start(s.ctx, e.ID, "")
	s.Require().NoError(err)
	sess, err = s.service.SubmitEmail(s.ctx, sess.ID, qualification.IdentityClaim{Email: "maria.lopez@example.com"})
	s.Require().NoError(err)

	wrong := "000000"
	if wrong == s.mailer.lastCode {
		wrong = "000001"
	}
	for i := 0; i < 2; i++ {
		_, err = s.service.VerifyCode(s.ctx, sess.ID, wrong)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	_, err = s.service.VerifyCode(s.ctx, sess.ID, wrong)
	s.True(dErrors.HasCode(err, dErrors.CodeCodeExhausted))

	sess, err = s.service.Get(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(flow.StateEmail, sess.State, "exhaustion restarts at the email step")
}
