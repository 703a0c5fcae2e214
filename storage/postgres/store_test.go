package postgres

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS notegen_state")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewWithDB(context.Background(), db)
	require.NoError(t, err)
	return s, mock
}

func TestStore_Load(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM notegen_state WHERE bucket = $1")).
		WithArgs("ledger").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"version":1}`)))

	data, err := s.Load(context.Background(), "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM notegen_state")).
		WithArgs("ledger").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Load(context.Background(), "ledger")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Save(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notegen_state")).
		WithArgs("ledger", []byte("data")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), "ledger", []byte("data")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notegen_state")).
		WillReturnError(errors.New("connection reset by peer"))

	err := s.Save(context.Background(), "ledger", []byte("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert ledger")
}

func TestStore_Keys(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT bucket FROM notegen_state")).
		WithArgs("led").
		WillReturnRows(sqlmock.NewRows([]string{"bucket"}).AddRow("ledger").AddRow("ledger.bak"))

	keys, err := s.Keys(context.Background(), "led")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger", "ledger.bak"}, keys)
}

func TestStore_InvalidKey(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Load(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("NOTEGEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test - requires NOTEGEN_TEST_POSTGRES_DSN environment variable")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	key := "test-" + t.Name()
	require.NoError(t, s.Save(ctx, key, []byte("one")))
	require.NoError(t, s.Save(ctx, key, []byte("two")))

	data, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = s.DB().ExecContext(ctx, "DELETE FROM notegen_state WHERE bucket = $1", key)
	require.NoError(t, err)
}
