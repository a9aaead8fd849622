package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "users/alice/memory.db", []byte("snapshot")))

		data, err := store.Get(ctx, "users/alice/memory.db")
		require.NoError(t, err)
		assert.Equal(t, []byte("snapshot"), data)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "users/alice/memory.db", []byte("v2")))

		data, err := store.Get(ctx, "users/alice/memory.db")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)

		// Temp files must not survive the rename.
		entries, err := os.ReadDir(filepath.Join(store.Root(), "users", "alice"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "users/nobody/memory.db")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "users/bob/memory.db", []byte("bob")))

		infos, err := store.List(ctx, "users/")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "users/alice/memory.db", infos[0].Name)
		assert.Equal(t, "users/bob/memory.db", infos[1].Name)
		assert.Equal(t, int64(3), infos[1].Size)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "users/bob/memory.db"))
		_, err := store.Get(ctx, "users/bob/memory.db")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is fine.
		assert.NoError(t, store.Delete(ctx, "users/bob/memory.db"))
	})
}

func TestLocalStoreListEmptyRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "does-not-exist"))

	infos, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "users/alice/memory.db", []byte("snapshot")))

	data, err := store.Get(ctx, "users/alice/memory.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), data)

	// Mutating the returned slice must not affect the stored blob.
	data[0] = 'X'
	again, err := store.Get(ctx, "users/alice/memory.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), again)

	infos, err := store.List(ctx, "users/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(8), infos[0].Size)

	require.NoError(t, store.Delete(ctx, "users/alice/memory.db"))
	_, err = store.Get(ctx, "users/alice/memory.db")
	assert.ErrorIs(t, err, ErrNotFound)
}
