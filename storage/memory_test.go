package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx, "ledger")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "ledger", []byte(`{"version":1}`)))
	data, err := store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	require.NoError(t, store.Save(ctx, "ledger", []byte(`{"version":2}`)))
	data, err = store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, string(data))
	assert.Equal(t, 2, store.SaveCount())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	buf := []byte("abc")
	require.NoError(t, store.Save(ctx, "k", buf))
	buf[0] = 'x'

	data, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	data[1] = 'y'
	again, _ := store.Load(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_SaveFunc(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SaveFunc = func(key string, data []byte) error {
		return errors.New("disk full")
	}

	err := store.Save(ctx, "k", []byte("v"))
	require.Error(t, err)
	assert.Equal(t, 1, store.SaveCount())

	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Keys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, k := range []string{"ledger", "settings", "ledger.bak"} {
		require.NoError(t, store.Save(ctx, k, []byte("x")))
	}

	keys, err := store.Keys(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger", "ledger.bak"}, keys)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save(ctx, "k", nil), ErrStorageClosed)
	_, err := store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageClosed)
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("ledger"))
	assert.ErrorIs(t, ValidateKey(""), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey(strings.Repeat("k", 513)), ErrInvalidKey)
}
