package tokenstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/tokenstore"
	faketokenstore "github.com/jrsteele09/go-storefront/tokenstore/repofake"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store implementation must share
func exerciseStore(t *testing.T, store tokenstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.ErrorIs(t, err, interrors.ErrNoToken, "empty store reads as anonymous")

	require.NoError(t, store.Set(ctx, "token-1"))
	token, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-1", token)

	require.NoError(t, store.Set(ctx, "token-2"))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-2", token, "set replaces")

	require.NoError(t, store.Delete(ctx))
	_, err = store.Get(ctx)
	require.ErrorIs(t, err, interrors.ErrNoToken)

	require.NoError(t, store.Delete(ctx), "deleting an absent token is fine")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store, err := tokenstore.NewFileStore(path)
	require.NoError(t, err)

	exerciseStore(t, store)

	t.Run("survives a new instance", func(t *testing.T) {
		require.NoError(t, store.Set(context.Background(), "durable"))

		reopened, err := tokenstore.NewFileStore(path)
		require.NoError(t, err)
		token, err := reopened.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, "durable", token)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("rejects empty token", func(t *testing.T) {
		err := store.Set(context.Background(), "  ")
		require.ErrorIs(t, err, interrors.ErrInvalidInput)
	})

	t.Run("requires a path", func(t *testing.T) {
		_, err := tokenstore.NewFileStore("")
		require.Error(t, err)
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := tokenstore.NewRedisStore(ctx, "redis://"+mr.Addr(), "storefront:token")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)

	require.NoError(t, store.Set(ctx, "shared"))
	got, err := mr.Get("storefront:token")
	require.NoError(t, err)
	require.Equal(t, "shared", got)
	require.Zero(t, mr.TTL("storefront:token"), "token is stored without expiry")
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	_, err := tokenstore.NewRedisStore(context.Background(), "redis://"+addr, "storefront:token")
	require.ErrorIs(t, err, interrors.ErrStoreUnavailable)
}

func TestFakeTokenStore(t *testing.T) {
	store := faketokenstore.NewFakeTokenStore("")
	exerciseStore(t, store)

	gets, sets, deletes := store.Calls()
	require.Equal(t, 4, gets)
	require.Equal(t, 2, sets)
	require.Equal(t, 2, deletes)
}
