// Package postgres provides a storage.BlobStore backed by a Postgres table.
package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/storage"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/notegen?sslmode=disable"

	createTable = `CREATE TABLE IF NOT EXISTS notegen_state (
		bucket TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	selectPayload = `SELECT payload FROM notegen_state WHERE bucket = $1`
	upsertPayload = `INSERT INTO notegen_state (bucket, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	selectBuckets = `SELECT bucket FROM notegen_state WHERE starts_with(bucket, $1) ORDER BY bucket`
)

// Store persists blobs as rows of the notegen_state table.
type Store struct {
	db *sql.DB
}

var (
	_ storage.BlobStore = (*Store)(nil)
	_ storage.Lister    = (*Store)(nil)
)

// Open connects to Postgres using dsn (falls back to a local default),
// verifies the connection and ensures the state table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	s, err := NewWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle and ensures the state table exists.
func NewWithDB(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, errors.Wrap(err, "ensure state table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectPayload, key).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, storage.ErrNotFound
	case err != nil:
		return nil, errors.Wrapf(err, "select %s", key)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, upsertPayload, key, data); err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectBuckets, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "select buckets")
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "scan bucket")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate buckets")
	}
	return keys, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}
