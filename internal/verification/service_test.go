package verification_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Mailer

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"gatepass/internal/platform/kafka"
	"gatepass/internal/qualification"
	"gatepass/internal/verification"
	"gatepass/internal/verification/mocks"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

type VerificationServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockMailer *mocks.MockMailer
	store      *verification.InMemoryStore
	service    *verification.Service

	eventID domain.EventID
	now     time.Time
	ctx     context.Context
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockMailer = mocks.NewMockMailer(s.ctrl)
	s.store = verification.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = verification.NewService(
		s.store,
		verification.NewInMemoryThrottle(10, time.Minute),
		s.mockMailer,
		nil,
		logger,
		verification.Options{CodeTTL: 10 * time.Minute, CodeLength: 6, MaxAttempts: 3},
	)

	s.eventID = domain.NewEventID()
	s.now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *VerificationServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *VerificationServiceSuite) profile() qualification.Profile {
	return qualification.Profile{
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria.lopez@example.com",
	}
}

// issue captures the plaintext code off the outbound email message.
func (s *VerificationServiceSuite) issue(p qualification.Profile) (string, *verification.IssueResult) {
	var code string
	s.mockMailer.EXPECT().
		PublishEmail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg kafka.EmailMessage) error {
			code = msg.Code
			return nil
		})

	result, err := s.service.Issue(s.ctx, verification.IssueParams{
		EventID: s.eventID,
		Key:     qualification.IdentityClaim{Email: p.Email, DistributorID: p.DistributorID}.Key(),
		Profile: p,
	})
	s.Require().NoError(err)
	s.Require().Len(code, 6)
	return code, result
}

func (s *VerificationServiceSuite) TestIssueAndValidate() {
	s.Run("valid code returns the qualification snapshot once", func() {
		code, _ := s.issue(s.profile())

		p, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
		s.NoError(err)
		s.Equal("Maria", p.FirstName)
		s.Equal("maria.lopez@example.com", p.Email)

		_, err = s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired), "codes are single-use")
	})

	s.Run("reissue invalidates the prior code", func() {
		old, _ := s.issue(s.profile())
		fresh, _ := s.issue(s.profile())

		if old != fresh {
			_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, old)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
		}

		_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, fresh)
		s.NoError(err)
	})

	s.Run("expired code is rejected and destroyed", func() {
		code, _ := s.issue(s.profile())

		later := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))
		_, err := s.service.Validate(later, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
		s.True(dErrors.HasCode(err, dErrors.CodeCodeExpired))

		_, err = s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
	})

	s.Run("attempts exhaust the session", func() {
		code, _ := s.issue(s.profile())

		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}

		for i := 0; i < 2; i++ {
			_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, wrong)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
		}
		_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, wrong)
		s.True(dErrors.HasCode(err, dErrors.CodeCodeExhausted))

		// Session is gone: even the right code cannot land now.
		_, err = s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
	})

	s.Run("no session maps to verification required", func() {
		_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "nobody@example.com"}, "123456")
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
	})

	s.Run("mailer failure does not block issuance", func() {
		s.mockMailer.EXPECT().
			PublishEmail(gomock.Any(), gomock.Any()).
			Return(context.DeadlineExceeded)

		_, err := s.service.Issue(s.ctx, verification.IssueParams{
			EventID: s.eventID,
			Key:     "maria.lopez@example.com",
			Profile: s.profile(),
		})
		s.NoError(err)
	})
}

func (s *VerificationServiceSuite) TestMaskedPath() {
	s.Run("masked issue returns a session token and no address", func() {
		p := s.profile()
		p.EmailMasked = true
		p.MaskedEmail = "m*********z@e*****e.com"
		p.DistributorID = "D-4471"

		code, result := s.issue(p)
		s.True(result.EmailMasked)
		s.NotEmpty(result.SessionToken)
		s.Equal("m*********z@e*****e.com", result.MaskedEmail)
		s.NotContains(result.MaskedEmail, "maria.lopez")

		got, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{SessionToken: result.SessionToken}, code)
		s.NoError(err)
		s.Equal("maria.lopez@example.com", got.Email)
	})

	s.Run("stale session token does not resolve a reissued code", func() {
		p := s.profile()
		p.EmailMasked = true
		p.MaskedEmail = "m*********z@e*****e.com"
		p.DistributorID = "D-4471"

		_, first := s.issue(p)
		code, second := s.issue(p)
		s.NotEqual(first.SessionToken, second.SessionToken)

		_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{SessionToken: first.SessionToken}, code)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
	})
}

func (s *VerificationServiceSuite) TestConcurrentValidateConsumesOnce() {
	code, _ := s.issue(s.profile())
	ref := verification.IdentityRef{Email: "maria.lopez@example.com"}

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := s.service.Validate(s.ctx, s.eventID, ref, code)
			if err == nil {
				wins.Add(1)
				return nil
			}
			if !dErrors.HasCode(err, dErrors.CodeVerificationRequired) {
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), wins.Load(), "a correct code lands for exactly one caller")
}

func (s *VerificationServiceSuite) TestThrottle() {
	service := verification.NewService(
		verification.NewInMemoryStore(),
		verification.NewInMemoryThrottle(1, time.Minute),
		nil,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		verification.Options{},
	)

	params := verification.IssueParams{
		EventID: s.eventID,
		Key:     "maria.lopez@example.com",
		Profile: s.profile(),
	}

	_, err := service.Issue(s.ctx, params)
	s.NoError(err)

	_, err = service.Issue(s.ctx, params)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *VerificationServiceSuite) TestReset() {
	code, _ := s.issue(s.profile())

	s.NoError(s.service.Reset(s.ctx, s.eventID, "maria.lopez@example.com"))

	_, err := s.service.Validate(s.ctx, s.eventID, verification.IdentityRef{Email: "maria.lopez@example.com"}, code)
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
}
