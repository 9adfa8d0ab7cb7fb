// Package store keeps the Person service's system-of-record rows. The rows
// are versioned the same way as the Address replica so that facts coming back
// from the Address service apply with the same rules.
package store

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"personsync/internal/person/models"
	"personsync/internal/replication/projection"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

// RedisPrefix namespaces person keys.
const RedisPrefix = "person:persons"

// Store wraps a projection backend with person queries.
type Store struct {
	projection.Store
}

func New(backend projection.Store) *Store {
	return &Store{Store: backend}
}

func NewMemory() *Store {
	return New(projection.NewMemoryStore())
}

func NewPostgres(db *sql.DB) *Store {
	return New(projection.NewPostgresStore(db, projection.TablePersons))
}

func NewRedis(client redis.UniversalClient) *Store {
	return New(projection.NewRedisStore(client, RedisPrefix))
}

// Get returns a live person or sentinel.ErrNotFound.
func (s *Store) Get(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	rec, err := s.Load(ctx, personID)
	if err != nil {
		return nil, err
	}
	if !rec.Live() {
		return nil, sentinel.ErrNotFound
	}
	return ToModel(rec), nil
}

// Find lists live persons matching filter.
func (s *Store) Find(ctx context.Context, filter models.Filter) ([]*models.Person, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Person, 0, len(recs))
	for i := range recs {
		p := ToModel(&recs[i])
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Records returns the raw live records, for resync.
func (s *Store) Records(ctx context.Context) ([]projection.Record, error) {
	return s.List(ctx)
}

// ToModel converts a stored record.
func ToModel(rec *projection.Record) *models.Person {
	a := rec.State.Attributes
	return &models.Person{
		ID:            rec.ID,
		FirstName:     a.FirstName,
		MiddleInitial: a.MiddleInitial,
		LastName:      a.LastName,
		Title:         a.Title,
		Version:       rec.State.Version,
		UpdatedAt:     rec.UpdatedAt,
	}
}
