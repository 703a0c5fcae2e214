package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-process BlobStore. It is used by tests and by
// deployments that do not need ledger durability.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	saves  int
	closed bool

	// SaveFunc, if set, is called before every Save and can fail it.
	SaveFunc func(key string, data []byte) error
}

var (
	_ BlobStore = (*MemoryStore)(nil)
	_ Lister    = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	m.saves++
	if m.SaveFunc != nil {
		if err := m.SaveFunc(key, data); err != nil {
			return err
		}
	}
	m.blobs[key] = slices.Clone(data)
	return nil
}

func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// SaveCount returns how many times Save was called, including failed calls.
func (m *MemoryStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
