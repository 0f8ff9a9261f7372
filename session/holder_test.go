package session

import (
	"context"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/finance-session/session/state"
)

func isReady(h *Holder) bool {
	select {
	case <-h.Ready():
		return true
	default:
		return false
	}
}

func TestHolderInitialize(t *testing.T) {
	ctx := context.Background()

	h := NewHolder(state.NewStore(seedBackend(storedSession("a1", "r1", testNow))), nil)
	require.Equal(t, StatusUnknown, h.Status())
	require.False(t, isReady(h))

	require.NoError(t, h.Initialize(ctx))
	require.Equal(t, StatusAuthenticated, h.Status())
	require.True(t, isReady(h))
	token, err := h.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "a1", token)

	h = NewHolder(state.NewStore(state.NewMemoryBackend()), nil)
	require.NoError(t, h.Initialize(ctx))
	require.Equal(t, StatusUnauthenticated, h.Status())
	require.True(t, isReady(h))
	_, err = h.AccessToken()
	require.True(t, trace.IsAccessDenied(err))
}

func TestHolderLoginBeforeInitialize(t *testing.T) {
	h := NewHolder(state.NewStore(state.NewMemoryBackend()), nil)
	err := h.Login("a1")
	require.True(t, trace.IsCompareFailed(err), "got %v", err)
	require.Equal(t, StatusUnknown, h.Status())
}

func TestHolderLoginAndRelogin(t *testing.T) {
	h := NewHolder(state.NewStore(state.NewMemoryBackend()), nil)
	require.NoError(t, h.Initialize(context.Background()))

	require.NoError(t, h.Login("a1"))
	require.True(t, h.IsAuthenticated())

	require.NoError(t, h.Login("a2"))
	token, err := h.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "a2", token)

	require.True(t, trace.IsBadParameter(h.Login("")))
}

func TestHolderLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := seedBackend(storedSession("a1", "r1", testNow))
	canceler := &countingCanceler{}
	h := NewHolder(state.NewStore(backend), canceler)
	require.NoError(t, h.Initialize(ctx))

	require.NoError(t, h.Logout(ctx))
	require.Equal(t, StatusUnauthenticated, h.Status())
	require.Equal(t, map[string]string{state.KeyName: "Ann"}, backend.Snapshot())

	require.NoError(t, h.Logout(ctx))
	require.Equal(t, StatusUnauthenticated, h.Status())
	require.Equal(t, map[string]string{state.KeyName: "Ann"}, backend.Snapshot())
	require.Equal(t, 2, canceler.Count())
}

func TestHolderLogoutKeepsMemoryOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: seedBackend(storedSession("a1", "r1", testNow))}
	h := NewHolder(state.NewStore(backend), nil)
	require.NoError(t, h.Initialize(ctx))

	backend.mu.Lock()
	backend.failDelete = true
	backend.mu.Unlock()

	err := h.Logout(ctx)
	require.True(t, trace.IsConnectionProblem(err), "got %v", err)
	require.True(t, h.IsAuthenticated())
}

func TestHolderInvalidateAndUpdateToken(t *testing.T) {
	h := NewHolder(state.NewStore(seedBackend(storedSession("a1", "r1", testNow))), nil)

	h.Invalidate()
	require.Equal(t, StatusUnknown, h.Status())

	require.NoError(t, h.Initialize(context.Background()))
	h.UpdateToken("a2")
	token, err := h.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "a2", token)

	h.Invalidate()
	require.False(t, h.IsAuthenticated())

	h.UpdateToken("a3")
	require.Equal(t, StatusUnauthenticated, h.Status())
}

func TestHolderSubscribe(t *testing.T) {
	ctx := context.Background()
	h := NewHolder(state.NewStore(state.NewMemoryBackend()), nil)
	updates := h.Subscribe()

	require.NoError(t, h.Initialize(ctx))
	require.NoError(t, h.Login("a1"))
	require.NoError(t, h.Login("a2"))
	require.NoError(t, h.Logout(ctx))

	var got []Status
	for len(got) < 3 {
		select {
		case status := <-updates:
			got = append(got, status)
		case <-time.After(waitFor):
			t.Fatalf("got only %v", got)
		}
	}
	require.Equal(t, []Status{StatusUnauthenticated, StatusAuthenticated, StatusUnauthenticated}, got)
	require.Empty(t, updates)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "unknown", StatusUnknown.String())
	require.Equal(t, "authenticated", StatusAuthenticated.String())
	require.Equal(t, "unauthenticated", StatusUnauthenticated.String())
}
