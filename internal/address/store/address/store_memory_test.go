package address

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"personsync/internal/address/models"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func newAddress(personID id.PersonID, city string, createdAt time.Time) *models.Address {
	return &models.Address{
		ID:        id.NewAddressID(),
		PersonID:  personID,
		Type:      "Home",
		Street:    "123 Main Street",
		City:      city,
		State:     "KY",
		ZipCode:   "12345",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	a := newAddress(id.NewPersonID(), "Louisville", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, a))

	found, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a, found)

	s.ErrorIs(s.store.Create(s.ctx, a), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestReturnedCopiesAreIsolated() {
	a := newAddress(id.NewPersonID(), "Louisville", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, a))

	found, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	found.City = "Lexington"

	again, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("Louisville", again.City)
}

func (s *InMemoryStoreSuite) TestUpdateAndDeleteUnknown() {
	a := newAddress(id.NewPersonID(), "Louisville", time.Now())
	s.ErrorIs(s.store.Update(s.ctx, a), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, a.ID), sentinel.ErrNotFound)

	_, err := s.store.FindByID(s.ctx, a.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListFiltersAndOrders() {
	owner := id.NewPersonID()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	second := newAddress(owner, "Lexington", base.Add(time.Minute))
	first := newAddress(owner, "Louisville", base)
	other := newAddress(id.NewPersonID(), "Louisville", base.Add(2*time.Minute))
	for _, a := range []*models.Address{second, first, other} {
		s.Require().NoError(s.store.Create(s.ctx, a))
	}

	all, err := s.store.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal(first.ID, all[0].ID)

	owned, err := s.store.List(s.ctx, models.Filter{PersonID: owner})
	s.Require().NoError(err)
	s.Len(owned, 2)
	s.Equal([]id.AddressID{first.ID, second.ID}, []id.AddressID{owned[0].ID, owned[1].ID})

	inCity, err := s.store.List(s.ctx, models.Filter{City: "Louisville"})
	s.Require().NoError(err)
	s.Len(inCity, 2)
}
