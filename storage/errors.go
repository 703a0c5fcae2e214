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


package storage

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound indicates that no blob is stored under the requested key.
	ErrNotFound = errors.New("blob not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidKey indicates an empty or malformed blob key.
	ErrInvalidKey = errors.New("invalid blob key")
)

// ValidateKey checks that key can be used with every backend.
func ValidateKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "key cannot be empty")
	}
	if len(key) > 512 {
		return errors.Wrapf(ErrInvalidKey, "key longer than 512 bytes: %d", len(key))
	}
	return nil
}
