package address

import (
	"context"
	"sort"
	"sync"

	"personsync/internal/address/models"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

// InMemoryStore keeps addresses in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	addresses map[id.AddressID]*models.Address
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{addresses: make(map[id.AddressID]*models.Address)}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addresses[a.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *a
	s.addresses[a.ID] = &clone
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addresses[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *a
	s.addresses[a.ID] = &clone
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, addressID id.AddressID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addresses[addressID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.addresses, addressID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, addressID id.AddressID) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.addresses[addressID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

// List returns matching addresses ordered by creation time.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Address, 0)
	for _, a := range s.addresses {
		if filter.Matches(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
