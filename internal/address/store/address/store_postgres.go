package address

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"personsync/internal/address/models"
	"personsync/internal/platform/postgres"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
)

// PostgresStore persists addresses in the addresses table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const addressColumns = `id, person_id, type, street, city, state, zip_code, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, a *models.Address) error {
	query := `INSERT INTO addresses (` + addressColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(a.PersonID), a.Type, a.Street, a.City, a.State, a.ZipCode, a.CreatedAt, a.UpdatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, a *models.Address) error {
	query := `
		UPDATE addresses
		SET person_id = $2, type = $3, street = $4, city = $5, state = $6, zip_code = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(a.PersonID), a.Type, a.Street, a.City, a.State, a.ZipCode, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, addressID id.AddressID) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, uuid.UUID(addressID))
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) FindByID(ctx context.Context, addressID id.AddressID) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	a, err := scanAddress(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(addressID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find address: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Address, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if !filter.PersonID.IsNil() {
		add("person_id", uuid.UUID(filter.PersonID))
	}
	for _, f := range []struct{ column, value string }{
		{"type", filter.Type},
		{"street", filter.Street},
		{"city", filter.City},
		{"state", filter.State},
		{"zip_code", filter.ZipCode},
	} {
		if f.value != "" {
			add(f.column, f.value)
		}
	}

	query := `SELECT ` + addressColumns + ` FROM addresses`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAddress(row scanner) (*models.Address, error) {
	var a models.Address
	var addressID, person uuid.UUID
	if err := row.Scan(&addressID, &person, &a.Type, &a.Street, &a.City, &a.State, &a.ZipCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AddressID(addressID)
	a.PersonID = id.PersonID(person)
	return &a, nil
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
