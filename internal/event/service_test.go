package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatepass/internal/event"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

type EventServiceSuite struct {
	suite.Suite
	service *event.Service
	now     time.Time
	ctx     context.Context
}

func TestEventServiceSuite(t *testing.T) {
	suite.Run(t, new(EventServiceSuite))
}

func (s *EventServiceSuite) SetupTest() {
	s.service = event.NewService(event.NewInMemoryStore())
	s.now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *EventServiceSuite) TestCreate() {
	s.Run("valid", func() {
		e, err := s.service.Create(s.ctx, event.CreateParams{
			Name:           "Leaders Summit",
			Mode:           "qualified_verified",
			Capacity:       500,
			RequiredFields: []string{"first_name", " last_name ", ""},
		})
		s.Require().NoError(err)
		s.True(e.RequiresQualification)
		s.False(e.Closed())
		s.Equal([]string{"first_name", "last_name"}, e.RequiredFields, "fields are trimmed, blanks dropped")
	})

	s.Run("unknown mode", func() {
		_, err := s.service.Create(s.ctx, event.CreateParams{Name: "X", Mode: "vip_only"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing name", func() {
		_, err := s.service.Create(s.ctx, event.CreateParams{Mode: "open_anonymous"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("inverted qualification window", func() {
		start := s.now.Add(time.Hour)
		end := s.now
		_, err := s.service.Create(s.ctx, event.CreateParams{
			Name:               "X",
			Mode:               "qualified_verified",
			QualificationStart: &start,
			QualificationEnd:   &end,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *EventServiceSuite) TestCloseIsOneWay() {
	e, err := s.service.Create(s.ctx, event.CreateParams{Name: "Summit", Mode: "open_verified"})
	s.Require().NoError(err)

	closed, err := s.service.Close(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(closed.Closed())
	s.Equal(s.now, *closed.RegistrationClosedAt)

	_, err = s.service.Close(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "there is no reopen, and no double close")

	got, err := s.service.Get(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(got.Closed())
}

func (s *EventServiceSuite) TestGetMissing() {
	e, err := s.service.Create(s.ctx, event.CreateParams{Name: "Summit", Mode: "open_anonymous"})
	s.Require().NoError(err)

	got, err := s.service.Get(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, got.ID)

	_, err = s.service.Get(s.ctx, domain.NewEventID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EventServiceSuite) TestQualificationWindow() {
	start := s.now.Add(-time.Hour)
	end := s.now.Add(time.Hour)
	e, err := s.service.Create(s.ctx, event.CreateParams{
		Name:               "Summit",
		Mode:               "qualified_verified",
		QualificationStart: &start,
		QualificationEnd:   &end,
	})
	s.Require().NoError(err)

	s.True(e.QualificationWindowOpen(s.now))
	s.False(e.QualificationWindowOpen(start.Add(-time.Minute)))
	s.False(e.QualificationWindowOpen(end.Add(time.Minute)))
}
