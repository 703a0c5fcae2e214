package badger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/notegen/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "missing directories are created")
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

	_, err := OpenBackend(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
	require.NoError(t, backend.Close(), "second close is a no-op")
}

func TestBackend_ValueLogGC(t *testing.T) {
	store, err := NewStore(t.TempDir(), WithValueLogGC(5*time.Millisecond), WithSyncWrites(true))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, store.Save(ctx, "ledger", []byte("snapshot")))
	}
	time.Sleep(20 * time.Millisecond)

	data, err := store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))
	require.NoError(t, store.Close(), "close waits for the GC loop")
}

func TestStore_SaveLoad(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Load(ctx, "ledger")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Save(ctx, "ledger", []byte(`{"version":1}`)))
	data, err := store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	require.NoError(t, store.Save(ctx, "ledger", []byte(`{"version":2}`)))
	data, err = store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, string(data))
}

func TestStore_InvalidKey(t *testing.T) {
	store, err := NewMemoryStore(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer store.Close()

	assert.ErrorIs(t, store.Save(context.Background(), "", []byte("x")), storage.ErrInvalidKey)
}

func TestStore_Keys(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, k := range []string{"settings", "ledger", "ledger.bak"} {
		require.NoError(t, store.Save(ctx, k, []byte("x")))
	}

	keys, err := store.Keys(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger", "ledger.bak"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "ledger", []byte("durable")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "durable", string(data))
}

func TestStore_Closed(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")

	ctx := context.Background()
	assert.ErrorIs(t, store.Save(ctx, "k", []byte("v")), storage.ErrStorageClosed)
	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStore_SharedBackend(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)
	defer backend.Close()

	store := NewStoreWithBackend(backend)
	require.NoError(t, store.Close())
	assert.False(t, backend.IsClosed(), "shared backend stays open")
}
