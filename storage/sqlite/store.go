// Package sqlite provides a storage.BlobStore backed by a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/storage"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`
	selectPayload = `SELECT payload FROM state WHERE bucket = ?`
	upsertPayload = `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`
	selectBuckets = `SELECT bucket FROM state WHERE bucket LIKE ? ESCAPE '\' ORDER BY bucket`
)

// Store persists blobs as rows of the state(bucket, payload) table.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ storage.BlobStore = (*Store)(nil)
	_ storage.Lister    = (*Store)(nil)
)

// Open opens or creates the SQLite database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "notegen.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer at a time keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s, err := NewWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.path = path
	return s, nil
}

// NewWithDB wraps an existing database handle and ensures the state table
// exists.
func NewWithDB(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, errors.Wrap(err, "create state table")
	}
	return &Store{db: db}, nil
}

// Load returns the payload stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectPayload, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", key)
	}
	return payload, nil
}

// Save upserts the payload under key.
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

// Keys lists stored keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectBuckets, escapeLike(prefix)+"%")
	if err != nil {
		return nil, errors.Wrap(err, "select buckets")
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the configured database path, empty for wrapped handles.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
