package outbox

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"personsync/pkg/platform/sentinel"
)

// MemoryStore is an in-process Store. It does not take part in transactions;
// callers add entries only after their own validation passed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	order   []uuid.UUID
	now     func() time.Time
	notify  chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*Entry),
		now:     time.Now,
		notify:  make(chan struct{}, 1),
	}
}

func (s *MemoryStore) Add(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.Headers = maps.Clone(entry.Headers)
	s.entries[entry.ID] = &entry
	s.order = append(s.order, entry.ID)

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *MemoryStore) Poll(_ context.Context, batchSize int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, id := range s.order {
		e := s.entries[id]
		if e == nil || e.ProcessedAt != nil {
			continue
		}
		out = append(out, *e)
		if batchSize > 0 && len(out) == batchSize {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.now()
	e.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.RetryCount++
	if cause != nil {
		e.LastError = cause.Error()
	}
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var removed int64
	s.order = slices.DeleteFunc(s.order, func(id uuid.UUID) bool {
		e := s.entries[id]
		if e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
			return true
		}
		return false
	})
	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.ProcessedAt == nil {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of one entry, for tests and diagnostics.
func (s *MemoryStore) Get(id uuid.UUID) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Notifications fires after Add, so a Relay can poll without waiting for its
// ticker.
func (s *MemoryStore) Notifications() <-chan struct{} { return s.notify }
