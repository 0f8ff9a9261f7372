package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testBackend runs the Backend contract against a fresh backend per subtest.
func testBackend(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		backend := newBackend(t)
		_, err := backend.Get(ctx, KeyAccessToken)
		require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)
	})

	t.Run("PutGet", func(t *testing.T) {
		backend := newBackend(t)
		require.NoError(t, backend.Put(ctx, map[string]string{
			KeyAccessToken:  "a1",
			KeyRefreshToken: "r1",
		}))

		value, err := backend.Get(ctx, KeyAccessToken)
		require.NoError(t, err)
		require.Equal(t, "a1", value)

		value, err = backend.Get(ctx, KeyRefreshToken)
		require.NoError(t, err)
		require.Equal(t, "r1", value)
	})

	t.Run("Overwrite", func(t *testing.T) {
		backend := newBackend(t)
		require.NoError(t, backend.Put(ctx, map[string]string{KeyName: "Alice"}))
		require.NoError(t, backend.Put(ctx, map[string]string{KeyName: "Bob"}))

		value, err := backend.Get(ctx, KeyName)
		require.NoError(t, err)
		require.Equal(t, "Bob", value)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		backend := newBackend(t)
		require.NoError(t, backend.Put(ctx, map[string]string{
			KeyAccessToken: "a1",
			KeyName:        "Alice",
		}))

		require.NoError(t, backend.Delete(ctx, KeyAccessToken, KeyRefreshToken))
		require.NoError(t, backend.Delete(ctx, KeyAccessToken, KeyRefreshToken))

		_, err := backend.Get(ctx, KeyAccessToken)
		require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

		value, err := backend.Get(ctx, KeyName)
		require.NoError(t, err)
		require.Equal(t, "Alice", value)
	})
}

func TestMemoryBackend(t *testing.T) {
	testBackend(t, func(t *testing.T) Backend {
		return NewMemoryBackend()
	})
}

func TestDiskvBackend(t *testing.T) {
	testBackend(t, func(t *testing.T) Backend {
		backend, err := NewDiskvBackend(filepath.Join(t.TempDir(), "state"))
		require.NoError(t, err)
		return backend
	})
}

func TestDiskvBackendPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewDiskvBackend(dir)
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, map[string]string{KeyRefreshToken: "r1"}))
	require.NoError(t, backend.Close())

	reopened, err := NewDiskvBackend(dir)
	require.NoError(t, err)
	value, err := reopened.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "r1", value)
}

func TestBoltBackend(t *testing.T) {
	testBackend(t, func(t *testing.T) Backend {
		backend, err := NewBoltBackend(filepath.Join(t.TempDir(), "session.db"))
		require.NoError(t, err)
		t.Cleanup(func() { backend.Close() })
		return backend
	})
}

func TestRedisBackend(t *testing.T) {
	testBackend(t, func(t *testing.T) Backend {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		backend := NewRedisBackend(client, "test:")
		t.Cleanup(func() { backend.Close() })
		return backend
	})
}

func TestRedisBackendPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client, "finance-session:")
	t.Cleanup(func() { backend.Close() })

	require.NoError(t, backend.Put(ctx, map[string]string{KeyAccountID: "42"}))
	value, err := mr.Get("finance-session:" + KeyAccountID)
	require.NoError(t, err)
	require.Equal(t, "42", value)
	require.False(t, mr.Exists(KeyAccountID))
}
