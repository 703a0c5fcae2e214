// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/notegen/storage"
)

// blobPrefix namespaces blob keys so other data can share the database.
const blobPrefix = "blob:"

func blobKey(key string) []byte {
	return []byte(blobPrefix + key)
}

// Store implements storage.BlobStore for BadgerDB.
type Store struct {
	backend *Backend
	owned   bool
}

var (
	_ storage.BlobStore = (*Store)(nil)
	_ storage.Lister    = (*Store)(nil)
)

// NewStore opens a BadgerDB database in dir and returns a blob store
// that owns it.
//
// Returns storage.BlobStore interface to enforce abstraction.
func NewStore(dir string, opts ...BackendOption) (storage.BlobStore, error) {
	backend, err := OpenBackend(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, owned: true}, nil
}

// NewMemoryStore creates a blob store on an in-memory database.
// Caller must close the store when done.
func NewMemoryStore(opts ...BackendOption) (*Store, error) {
	backend, err := OpenBackend("", opts...)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, owned: true}, nil
}

// NewStoreWithBackend creates a blob store on a shared backend. Closing the
// store leaves the backend open.
func NewStoreWithBackend(backend *Backend) *Store {
	return &Store{backend: backend}
}

// Save persists data under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	err := s.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(blobKey(key), data)
	})
	return errors.Wrapf(err, "save %s", key)
}

// Load retrieves the blob stored under key.
// Returns storage.ErrNotFound if no blob exists.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var data []byte
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(blobKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "load %s", key)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// Keys lists stored keys with the given prefix in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var keys []string
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = blobKey(prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, strings.TrimPrefix(string(iter.Item().Key()), blobPrefix))
		}
		return nil
	})
	return keys, err
}

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.backend.Close()
}
