package storage

import (
	"context"
)

// BlobStore is a persistent key-value store holding opaque blobs.
// Implementations must be thread-safe and support concurrent access.
type BlobStore interface {
	// Load returns the blob stored under key.
	// Returns ErrNotFound if nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, replacing any previous blob.
	Save(ctx context.Context, key string, data []byte) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	// Keys returns every stored key with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
