package projection

import (
	"context"
	"slices"
	"sync"

	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

// MemoryStore keeps records in a map. Tombstones are kept like in every
// other backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.PersonID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[id.PersonID]Record)}
}

func (s *MemoryStore) Load(_ context.Context, personID id.PersonID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Swap(_ context.Context, rec Record, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.ID]
	if !ok || cur.Revision != expected {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.State.Deleted {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// sortRecords orders by id, matching the ORDER BY of the postgres store.
func sortRecords(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int { return slices.Compare(a.ID[:], b.ID[:]) })
}
