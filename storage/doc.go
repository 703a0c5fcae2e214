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


// Package storage provides the persistent key-value collaborator for notegen.
//
// The ledger and the settings layer persist opaque blobs under string keys.
// BlobStore decouples them from the backend so any of the implementations
// can be swapped in by configuration:
//
//   - storage.MemoryStore: in-process, used by tests
//   - storage/badger: embedded BadgerDB, the default
//   - storage/sqlite: a single-table SQLite database
//   - storage/postgres: a single table in Postgres
//   - storage/s3: one object per key in an S3-compatible bucket
//
// # Usage
//
//	store, err := badger.NewStore("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Save(ctx, "ledger", data)
//	data, err = store.Load(ctx, "ledger")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // fresh install
//	}
//
// Use in tests with in-memory storage:
//
//	store := storage.NewMemoryStore()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
