package registration_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks EventSource,AuditPublisher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatepass/internal/event"
	"gatepass/internal/qualification"
	"gatepass/internal/registration"
	"gatepass/internal/registration/mocks"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

type RegistrationServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockEvents *mocks.MockEventSource
	mockAudit  *mocks.MockAuditPublisher
	store      *registration.InMemoryStore
	service    *registration.Service

	eventID domain.EventID
	now     time.Time
	ctx     context.Context
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockEvents = mocks.NewMockEventSource(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.mockAudit.EXPECT().PublishAudit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.store = registration.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = registration.NewService(s.store, s.mockEvents, s.mockAudit, nil, logger)

	s.eventID = domain.NewEventID()
	s.now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *RegistrationServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RegistrationServiceSuite) newEvent(mode domain.RegistrationMode, required ...string) *event.Event {
	e, err := event.New(s.eventID, "Leaders Summit", mode, 500, required, s.now)
	s.Require().NoError(err)
	return e
}

func (s *RegistrationServiceSuite) verified() *qualification.Profile {
	return &qualification.Profile{
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria.lopez@example.com",
	}
}

func (s *RegistrationServiceSuite) submitVerified() *registration.SubmitResult {
	s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
		Return(s.newEvent(domain.ModeQualifiedVerified, "first_name", "last_name", "email"), nil)

	result, err := s.service.Submit(s.ctx, registration.SubmitParams{
		EventID:  s.eventID,
		Verified: s.verified(),
		Fields:   map[string]string{"first_name": "Maria", "last_name": "Lopez"},
	})
	s.Require().NoError(err)
	return result
}

func (s *RegistrationServiceSuite) TestSubmit() {
	s.Run("closed event rejects before verification is considered", func() {
		e := s.newEvent(domain.ModeQualifiedVerified)
		e.ApplyClose(s.now)
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).Return(e, nil)

		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: s.verified(),
			Fields:   map[string]string{"first_name": "Maria"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeRegistrationClosed))
	})

	s.Run("verified mode without proof is rejected", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeOpenVerified), nil)

		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID: s.eventID,
			Fields:  map[string]string{"email": "maria.lopez@example.com"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationRequired))
	})

	s.Run("missing required fields are named", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified, "first_name", "last_name", "phone"), nil)

		p := s.verified()
		p.FirstName = ""
		p.LastName = ""
		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: p,
			Fields:   map[string]string{},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal([]string{"first_name", "last_name", "phone"}, dErrors.FieldsOf(err))
	})

	s.Run("first submission creates", func() {
		result := s.submitVerified()
		s.False(result.WasUpdated)
		s.Equal("maria.lopez@example.com", result.Registration.Email)
		s.Equal(domain.StatusRegistered, result.Registration.Status)
	})

	s.Run("resubmission updates the same row", func() {
		first := s.submitVerified()

		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified, "first_name", "last_name", "email"), nil)
		second, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: s.verified(),
			Fields:   map[string]string{"first_name": "Maria", "last_name": "Lopez-Garcia"},
		})
		s.Require().NoError(err)
		s.True(second.WasUpdated)
		s.Equal(first.Registration.ID, second.Registration.ID)
		s.Equal("Lopez-Garcia", second.Registration.LastName)
		s.Equal(first.Registration.RegisteredAt, second.Registration.RegisteredAt)
	})

	s.Run("verified email overrides the form", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified, "email"), nil)

		result, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: s.verified(),
			Fields:   map[string]string{"email": "spoofed@example.com"},
		})
		s.Require().NoError(err)
		s.Equal("maria.lopez@example.com", result.Registration.Email)
	})

	s.Run("companions above the allowance are rejected", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified), nil)

		p := s.verified()
		p.GuestAllowance = 1
		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:    s.eventID,
			Verified:   p,
			Companions: 3,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown fields land in extra", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified), nil)

		result, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: s.verified(),
			Fields:   map[string]string{"dietary": "vegetarian"},
		})
		s.Require().NoError(err)
		s.Equal("vegetarian", result.Registration.Extra["dietary"])
	})
}

func (s *RegistrationServiceSuite) TestSubmitAnonymous() {
	s.Run("same email may register repeatedly", func() {
		for i := 0; i < 2; i++ {
			s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
				Return(s.newEvent(domain.ModeOpenAnonymous, "first_name", "last_name", "email"), nil)

			result, err := s.service.Submit(s.ctx, registration.SubmitParams{
				EventID: s.eventID,
				Fields: map[string]string{
					"first_name": "Ana", "last_name": "Silva", "email": "ana@example.com",
				},
			})
			s.Require().NoError(err)
			s.False(result.WasUpdated)
		}

		rows, err := s.store.ListByEvent(s.ctx, s.eventID)
		s.Require().NoError(err)
		s.Len(rows, 2)
	})

	s.Run("additional attendees become rows sharing the language", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeOpenAnonymous, "first_name", "last_name", "email"), nil)

		result, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Language: "pt",
			Fields: map[string]string{
				"first_name": "Ana", "last_name": "Silva", "email": "ana2@example.com",
			},
			Attendees: []registration.Attendee{
				{FirstName: "Rui", LastName: "Silva", Email: "rui@example.com"},
			},
		})
		s.Require().NoError(err)
		s.Len(result.Created, 2)
		for _, r := range result.Created {
			s.Equal("pt", r.Language)
		}
	})

	s.Run("attendee missing a name rejects the submission", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeOpenAnonymous, "email"), nil)

		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID: s.eventID,
			Fields:  map[string]string{"email": "ana3@example.com"},
			Attendees: []registration.Attendee{
				{FirstName: "", LastName: "Silva", Email: "x@example.com"},
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("attendees are refused on verified events", func() {
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeOpenVerified), nil)

		_, err := s.service.Submit(s.ctx, registration.SubmitParams{
			EventID:  s.eventID,
			Verified: s.verified(),
			Attendees: []registration.Attendee{
				{FirstName: "Rui", LastName: "Silva", Email: "rui@example.com"},
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrationServiceSuite) TestFetchExisting() {
	result := s.submitVerified()

	found, err := s.service.FetchExisting(s.ctx, s.eventID, qualification.IdentityClaim{Email: "MARIA.LOPEZ@example.com"})
	s.NoError(err)
	s.Equal(result.Registration.ID, found.ID)

	_, err = s.service.FetchExisting(s.ctx, s.eventID, qualification.IdentityClaim{Email: "nobody@example.com"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrationServiceSuite) TestTransfer() {
	s.Run("resets event-scoped state and nothing else", func() {
		result := s.submitVerified()
		checked, err := s.service.CheckIn(s.ctx, result.Registration.ID)
		s.Require().NoError(err)
		s.Require().NotNil(checked.CheckedInAt)

		targetID := domain.NewEventID()
		target, err := event.New(targetID, "Next Summit", domain.ModeQualifiedVerified, 500, nil, s.now)
		s.Require().NoError(err)
		s.mockEvents.EXPECT().Get(gomock.Any(), targetID).Return(target, nil)

		moved, err := s.service.Transfer(s.ctx, result.Registration.ID, targetID)
		s.Require().NoError(err)
		s.Equal(targetID, moved.EventID)
		s.Nil(moved.CheckedInAt)
		s.Nil(moved.BadgePrintedAt)
		s.Equal(domain.SwagNone, moved.SwagStatus)
		s.Equal(domain.StatusRegistered, moved.Status)
		s.Equal("maria.lopez@example.com", moved.Email, "identity travels untouched")
	})

	s.Run("same-event target conflicts", func() {
		result := s.submitVerified()
		s.mockEvents.EXPECT().Get(gomock.Any(), s.eventID).
			Return(s.newEvent(domain.ModeQualifiedVerified), nil)

		_, err := s.service.Transfer(s.ctx, result.Registration.ID, s.eventID)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferConflict))
	})

	s.Run("missing target event is not found", func() {
		result := s.submitVerified()
		targetID := domain.NewEventID()
		s.mockEvents.EXPECT().Get(gomock.Any(), targetID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "event not found"))

		_, err := s.service.Transfer(s.ctx, result.Registration.ID, targetID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		// The original row is untouched.
		still, err := s.store.FindByID(s.ctx, result.Registration.ID)
		s.Require().NoError(err)
		s.Equal(s.eventID, still.EventID)
	})

	s.Run("occupied slot on the target conflicts", func() {
		result := s.submitVerified()

		targetID := domain.NewEventID()
		target, err := event.New(targetID, "Next Summit", domain.ModeQualifiedVerified, 500, nil, s.now)
		s.Require().NoError(err)

		// Same email already holds a row on the target event.
		occupant, err := registration.New(domain.NewRegistrationID(), targetID, "Maria", "Lopez", "maria.lopez@example.com", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Insert(s.ctx, occupant))

		s.mockEvents.EXPECT().Get(gomock.Any(), targetID).Return(target, nil)
		_, err = s.service.Transfer(s.ctx, result.Registration.ID, targetID)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferConflict))
	})
}

func (s *RegistrationServiceSuite) TestLifecycle() {
	s.Run("cancel frees the identity to re-register", func() {
		result := s.submitVerified()
		s.NoError(s.service.Cancel(s.ctx, result.Registration.ID))

		second := s.submitVerified()
		s.False(second.WasUpdated, "cancelled identity registers as new")
	})

	s.Run("cancel of a missing row is not found", func() {
		err := s.service.Cancel(s.ctx, domain.NewRegistrationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("double check-in conflicts", func() {
		result := s.submitVerified()
		_, err := s.service.CheckIn(s.ctx, result.Registration.ID)
		s.Require().NoError(err)

		_, err = s.service.CheckIn(s.ctx, result.Registration.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("declined attendee cannot check in", func() {
		result := s.submitVerified()
		_, err := s.service.MarkNotComing(s.ctx, result.Registration.ID)
		s.Require().NoError(err)

		_, err = s.service.CheckIn(s.ctx, result.Registration.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
