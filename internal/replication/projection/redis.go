package projection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "personsync/pkg/domain"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/sentinel"
)

// RedisStore keeps each record in a hash and the known ids in a set. Writes
// use WATCH/MULTI so a concurrent writer aborts the transaction.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore stores records under prefix, e.g. "personsync:replica".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(personID id.PersonID) string {
	return s.prefix + ":person:" + personID.String()
}

func (s *RedisStore) indexKey() string { return s.prefix + ":ids" }

func (s *RedisStore) Load(ctx context.Context, personID id.PersonID) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(personID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load replica hash: %w", err)
	}
	return decodeHash(personID, fields)
}

func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	return s.write(ctx, rec, func(current *Record) bool { return current == nil })
}

func (s *RedisStore) Swap(ctx context.Context, rec Record, expected int64) error {
	return s.write(ctx, rec, func(current *Record) bool {
		return current != nil && current.Revision == expected
	})
}

func (s *RedisStore) write(ctx context.Context, rec Record, precondition func(*Record) bool) error {
	key := s.key(rec.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeHash(rec.ID, fields)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if !precondition(current) {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeHash(rec))
			pipe.SAdd(ctx, s.indexKey(), rec.ID.String())
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, sentinel.ErrConflict) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("write replica hash: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list replica ids: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.prefix+":person:"+raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load replica hashes: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for i, raw := range ids {
		personID, err := id.ParsePersonID(raw)
		if err != nil {
			continue
		}
		rec, err := decodeHash(personID, cmds[i].Val())
		if err != nil || rec.State.Deleted {
			continue
		}
		out = append(out, *rec)
	}
	sortRecords(out)
	return out, nil
}

func encodeHash(rec Record) map[string]any {
	a := rec.State.Attributes
	return map[string]any{
		"first_name":     a.FirstName,
		"middle_initial": a.MiddleInitial,
		"last_name":      a.LastName,
		"title":          a.Title,
		"version":        rec.State.Version.UTC().Format(time.RFC3339Nano),
		"revision":       rec.Revision,
		"deleted":        strconv.FormatBool(rec.State.Deleted),
		"updated_at":     rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeHash(personID id.PersonID, f map[string]string) (*Record, error) {
	if len(f) == 0 {
		return nil, sentinel.ErrNotFound
	}
	version, err := time.Parse(time.RFC3339Nano, f["version"])
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	revision, err := strconv.ParseInt(f["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse revision: %w", err)
	}
	deleted, _ := strconv.ParseBool(f["deleted"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, f["updated_at"])
	return &Record{
		ID: personID,
		State: personfact.State{
			Attributes: personfact.Attributes{
				FirstName:     f["first_name"],
				MiddleInitial: f["middle_initial"],
				LastName:      f["last_name"],
				Title:         f["title"],
			},
			Version: version.UTC(),
			Deleted: deleted,
		},
		Revision:  revision,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}
