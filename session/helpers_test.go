package session

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/finance-session/session/api"
	"github.com/gravitational/finance-session/session/state"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// fakeAPI is an in-memory api.Authorizer.
type fakeAPI struct {
	mu            sync.Mutex
	refreshCalls  int
	loginCalls    int
	refreshTokens []string
	refresh       func(ctx context.Context, refreshToken string) (*state.Credentials, error)
	login         func(ctx context.Context, email, password string) (*api.LoginResult, error)
	register      func(ctx context.Context, name, email, password string) error
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	fn := f.refresh
	f.mu.Unlock()
	if fn == nil {
		return nil, trace.NotImplemented("refresh")
	}
	return fn(ctx, refreshToken)
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*api.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.login
	f.mu.Unlock()
	if fn == nil {
		return nil, trace.NotImplemented("login")
	}
	return fn(ctx, email, password)
}

func (f *fakeAPI) Register(ctx context.Context, name, email, password string) error {
	f.mu.Lock()
	fn := f.register
	f.mu.Unlock()
	if fn == nil {
		return trace.NotImplemented("register")
	}
	return fn(ctx, name, email, password)
}

func (f *fakeAPI) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeAPI) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// failingBackend fails writes on demand.
type failingBackend struct {
	*state.MemoryBackend

	mu         sync.Mutex
	failDelete bool
}

func (b *failingBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	fail := b.failDelete
	b.mu.Unlock()
	if fail {
		return trace.ConnectionProblem(nil, "backend is down")
	}
	return b.MemoryBackend.Delete(ctx, keys...)
}

// countingCanceler records Cancel calls.
type countingCanceler struct {
	mu    sync.Mutex
	count int
}

func (c *countingCanceler) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingCanceler) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func seedBackend(values map[string]string) *state.MemoryBackend {
	backend := state.NewMemoryBackend()
	if err := backend.Put(context.Background(), values); err != nil {
		panic(err)
	}
	return backend
}

func storedSession(accessToken, refreshToken string, expiresAt time.Time) map[string]string {
	return map[string]string{
		state.KeyAccessToken:  accessToken,
		state.KeyRefreshToken: refreshToken,
		state.KeyExpiresIn:    state.FormatExpiry(expiresAt),
		state.KeyAccountID:    "42",
		state.KeyName:         "Ann",
	}
}
