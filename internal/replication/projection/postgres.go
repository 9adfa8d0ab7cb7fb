package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
)

// Projection tables.
const (
	TablePersons  = "persons"
	TableReplicas = "person_replicas"
)

// PostgresStore keeps records in one of the projection tables. It joins the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore returns a store over table, which must be TablePersons or
// TableReplicas.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table != TablePersons && table != TableReplicas {
		panic(fmt.Sprintf("projection: unknown table %q", table))
	}
	return &PostgresStore{db: db, table: table}
}

const columns = `id, first_name, middle_initial, last_name, title, version, revision, deleted, updated_at`

func (s *PostgresStore) Load(ctx context.Context, personID id.PersonID) (*Record, error) {
	query := `SELECT ` + columns + ` FROM ` + s.table + ` WHERE id = $1`
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(personID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s row: %w", s.table, err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO ` + s.table + ` (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	a := rec.State.Attributes
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID), a.FirstName, a.MiddleInitial, a.LastName, a.Title,
		rec.State.Version, rec.Revision, rec.State.Deleted, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s row: %w", s.table, err)
	}
	return conflictIfUntouched(res)
}

func (s *PostgresStore) Swap(ctx context.Context, rec Record, expected int64) error {
	query := `
		UPDATE ` + s.table + `
		SET first_name = $2, middle_initial = $3, last_name = $4, title = $5,
		    version = $6, revision = $7, deleted = $8, updated_at = $9
		WHERE id = $1 AND revision = $10
	`
	a := rec.State.Attributes
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID), a.FirstName, a.MiddleInitial, a.LastName, a.Title,
		rec.State.Version, rec.Revision, rec.State.Deleted, rec.UpdatedAt, expected,
	)
	if err != nil {
		return fmt.Errorf("update %s row: %w", s.table, err)
	}
	return conflictIfUntouched(res)
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + columns + ` FROM ` + s.table + ` WHERE NOT deleted ORDER BY id`
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.table, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec Record
		pid uuid.UUID
	)
	a := &rec.State.Attributes
	if err := row.Scan(&pid, &a.FirstName, &a.MiddleInitial, &a.LastName, &a.Title,
		&rec.State.Version, &rec.Revision, &rec.State.Deleted, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.PersonID(pid)
	rec.State.Version = rec.State.Version.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func conflictIfUntouched(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
