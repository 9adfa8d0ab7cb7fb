package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
)

// NotifyChannel is the LISTEN/NOTIFY channel raised when entries are added.
const NotifyChannel = "outbox"

// PostgresStore keeps entries in the outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts the entry and raises a notification that is delivered when the
// surrounding transaction commits.
func (s *PostgresStore) Add(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("marshal outbox headers: %w", err)
	}
	if entry.Headers == nil {
		headers = []byte("{}")
	}

	execer := txcontext.Execer(ctx, s.db)
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, topic, payload, headers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = execer.ExecContext(ctx, query,
		entry.ID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.Payload,
		headers,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if _, err := execer.ExecContext(ctx, `SELECT pg_notify($1, '')`, NotifyChannel); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}
	return nil
}

func (s *PostgresStore) Poll(ctx context.Context, batchSize int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, topic, payload, headers,
		       created_at, retry_count, COALESCE(last_error, '')
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("poll outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			headers []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic,
			&e.Payload, &headers, &e.CreatedAt, &e.RetryCount, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(headers, &e.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal outbox headers: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE outbox SET processed_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`, id, msg)
	if err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox rows affected: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
