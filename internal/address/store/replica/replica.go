// Package replica is the Address service's read-only copy of persons. Rows are
// written only by the person command handler; address validation reads them.
package replica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"personsync/internal/address/models"
	"personsync/internal/replication/projection"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

// RedisPrefix namespaces replica keys.
const RedisPrefix = "address:replica"

// Store wraps a projection backend with replica queries.
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
	return New(projection.NewPostgresStore(db, projection.TableReplicas))
}

func NewRedis(client redis.UniversalClient) *Store {
	return New(projection.NewRedisStore(client, RedisPrefix))
}

// Get returns the replicated person. Absent and tombstoned persons are
// sentinel.ErrNotFound.
func (s *Store) Get(ctx context.Context, personID id.PersonID) (*models.PersonReplica, error) {
	rec, err := s.Load(ctx, personID)
	if err != nil {
		return nil, err
	}
	if !rec.Live() {
		return nil, sentinel.ErrNotFound
	}
	return toModel(rec), nil
}

// Exists reports whether personID is a live replicated person.
func (s *Store) Exists(ctx context.Context, personID id.PersonID) (bool, error) {
	_, err := s.Get(ctx, personID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// All returns every live replicated person.
func (s *Store) All(ctx context.Context) ([]*models.PersonReplica, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PersonReplica, 0, len(recs))
	for i := range recs {
		out = append(out, toModel(&recs[i]))
	}
	return out, nil
}

func toModel(rec *projection.Record) *models.PersonReplica {
	a := rec.State.Attributes
	return &models.PersonReplica{
		ID:            rec.ID,
		FirstName:     a.FirstName,
		MiddleInitial: a.MiddleInitial,
		LastName:      a.LastName,
		Title:         a.Title,
		Version:       rec.State.Version,
	}
}
