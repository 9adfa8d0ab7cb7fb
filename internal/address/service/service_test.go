package service

//go:generate mockgen -source=service.go -destination=mocks/store_mock.go -package=mocks Store
//go:generate mockgen -source=validator.go -destination=mocks/replica_mock.go -package=mocks ReplicaReader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"personsync/internal/address/models"
	"personsync/internal/address/service/mocks"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
	"personsync/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	replica *mocks.MockReplicaReader
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.replica = mocks.NewMockReplicaReader(s.ctrl)
	s.service = New(s.store, s.replica, txcontext.NewShardedRunner(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) createRequest(personID id.PersonID) models.CreateAddressRequest {
	return models.CreateAddressRequest{
		PersonID: personID.String(),
		Type:     "Home",
		Street:   "123 Main Street",
		City:     "Louisville",
		State:    "KY",
		ZipCode:  "12345",
	}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("replicated person gets the address", func() {
		personID := id.NewPersonID()
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(true, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a *models.Address) error {
			s.Equal(personID, a.PersonID)
			s.False(a.ID.IsNil())
			return nil
		})

		got, err := s.service.Create(s.ctx, s.createRequest(personID))
		s.Require().NoError(err)
		s.Equal("123 Main Street", got.Street)
		s.Equal(s.now, got.CreatedAt)
	})

	s.Run("unreplicated person is not found and nothing is stored", func() {
		personID := id.NewPersonID()
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(false, nil)

		_, err := s.service.Create(s.ctx, s.createRequest(personID))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("personId", dErrors.FieldOf(err))
	})

	s.Run("reference is checked before field rules", func() {
		personID := id.NewPersonID()
		req := s.createRequest(personID)
		req.ZipCode = "abc"
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(false, nil)

		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("field rules reject after a successful lookup", func() {
		personID := id.NewPersonID()
		req := s.createRequest(personID)
		req.ZipCode = "1234"
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(true, nil)

		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("zipCode", dErrors.FieldOf(err))
	})

	s.Run("malformed person id is a validation failure", func() {
		req := s.createRequest(id.NewPersonID())
		req.PersonID = "not-a-uuid"

		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("replica read failure is internal", func() {
		personID := id.NewPersonID()
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(false, errors.New("redis down"))

		_, err := s.service.Create(s.ctx, s.createRequest(personID))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestUpdate() {
	personID := id.NewPersonID()
	existing := &models.Address{
		ID: id.NewAddressID(), PersonID: personID,
		Type: "Home", Street: "123 Main Street", City: "Louisville", State: "KY", ZipCode: "12345",
		CreatedAt: s.now.Add(-time.Hour), UpdatedAt: s.now.Add(-time.Hour),
	}

	s.Run("changes overlay the stored address", func() {
		city := " Lexington "
		s.store.EXPECT().FindByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.replica.EXPECT().Exists(gomock.Any(), personID).Return(true, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		got, err := s.service.Update(s.ctx, existing.ID, models.UpdateAddressRequest{City: &city})
		s.Require().NoError(err)
		s.Equal("Lexington", got.City)
		s.Equal("123 Main Street", got.Street)
		s.Equal(s.now, got.UpdatedAt)
		s.Equal(existing.CreatedAt, got.CreatedAt)
	})

	s.Run("moving to an unreplicated person is not found", func() {
		other := id.NewPersonID()
		raw := other.String()
		s.store.EXPECT().FindByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.replica.EXPECT().Exists(gomock.Any(), other).Return(false, nil)

		_, err := s.service.Update(s.ctx, existing.ID, models.UpdateAddressRequest{PersonID: &raw})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown address is not found", func() {
		missing := id.NewAddressID()
		s.store.EXPECT().FindByID(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Update(s.ctx, missing, models.UpdateAddressRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDeleteAndQueries() {
	addressID := id.NewAddressID()

	s.Run("delete unknown address is not found", func() {
		s.store.EXPECT().Delete(gomock.Any(), addressID).Return(sentinel.ErrNotFound)
		err := s.service.Delete(s.ctx, addressID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("delete existing address", func() {
		s.store.EXPECT().Delete(gomock.Any(), addressID).Return(nil)
		s.NoError(s.service.Delete(s.ctx, addressID))
	})

	s.Run("get unknown address is not found", func() {
		s.store.EXPECT().FindByID(gomock.Any(), addressID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, addressID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list by person filters on person id", func() {
		personID := id.NewPersonID()
		s.store.EXPECT().List(gomock.Any(), models.Filter{PersonID: personID}).Return([]*models.Address{}, nil)
		got, err := s.service.ListByPerson(s.ctx, personID)
		s.Require().NoError(err)
		s.Empty(got)
	})
}
