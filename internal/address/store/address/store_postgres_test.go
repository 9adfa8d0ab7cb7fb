package address

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personsync/internal/address/models"
	id "personsync/pkg/domain"
	"personsync/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_List(t *testing.T) {
	ctx := context.Background()
	owner := id.NewPersonID()
	addressID := id.NewAddressID()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("filters become positional conditions", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "person_id", "type", "street", "city", "state", "zip_code", "created_at", "updated_at"}).
			AddRow(uuid.UUID(addressID), uuid.UUID(owner), "Home", "123 Main Street", "Louisville", "KY", "12345", at, at)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM addresses WHERE person_id = $1 AND city = $2 AND zip_code = $3 ORDER BY created_at, id`)).
			WithArgs(uuid.UUID(owner), "Louisville", "12345").
			WillReturnRows(rows)

		got, err := store.List(ctx, models.Filter{PersonID: owner, City: "Louisville", ZipCode: "12345"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, addressID, got[0].ID)
		assert.Equal(t, owner, got[0].PersonID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty filter lists everything", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM addresses ORDER BY created_at, id`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := store.List(ctx, models.Filter{})
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_NotFound(t *testing.T) {
	ctx := context.Background()
	addressID := id.NewAddressID()

	t.Run("find without row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("FROM addresses WHERE id").WillReturnError(sql.ErrNoRows)

		_, err := store.FindByID(ctx, addressID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("update touching no row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE addresses").WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Update(ctx, &models.Address{ID: addressID, PersonID: id.NewPersonID()})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("delete touching no row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM addresses").WithArgs(uuid.UUID(addressID)).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.Delete(ctx, addressID), sentinel.ErrNotFound)
	})
}
