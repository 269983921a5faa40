package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, store authclient.Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "token", "abc"))
	v, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, store.Set(ctx, "token", "def"))
	v, _, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, store.Delete(ctx, "token"))
	_, ok, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestMemory(t *testing.T) {
	exerciseStorage(t, storage.NewMemory(nil))
}

func TestMemorySeedAndReset(t *testing.T) {
	m := storage.NewMemory(map[string]string{"device_id": "d-1"})
	v, ok, err := m.Get(context.Background(), "device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d-1", v)

	m.Reset()
	assert.Equal(t, 0, m.Len())
}

func TestPrefixed(t *testing.T) {
	base := storage.NewMemory(nil)
	exerciseStorage(t, storage.Prefixed{Store: base, Prefix: "admin:"})

	p := storage.Prefixed{Store: base, Prefix: "admin:"}
	require.NoError(t, p.Set(context.Background(), "token", "x"))

	v, ok, err := base.Get(context.Background(), "admin:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok, err = base.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func openSQLite(t *testing.T, namespace string) *storage.BunStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "client.db")
	store, closeFn, err := storage.OpenSQLite(context.Background(), dsn, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return store
}

func TestBunStore(t *testing.T) {
	exerciseStorage(t, openSQLite(t, "admin"))
}

func TestBunStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "client.db")

	store, closeFn, err := storage.OpenSQLite(ctx, dsn, "portal")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "device_id", "d-42"))
	require.NoError(t, closeFn())

	reopened, closeFn, err := storage.OpenSQLite(ctx, dsn, "portal")
	require.NoError(t, err)
	defer closeFn()

	v, ok, err := reopened.Get(ctx, "device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d-42", v)

	other, closeOther, err := storage.OpenSQLite(ctx, dsn, "admin")
	require.NoError(t, err)
	defer closeOther()
	_, ok, err = other.Get(ctx, "device_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBunStoreKeys(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t, "admin")
	require.NoError(t, store.Set(ctx, "token", "t"))
	require.NoError(t, store.Set(ctx, "device_id", "d"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"device_id", "token"}, keys)
	assert.Equal(t, "admin", store.Namespace())
}
