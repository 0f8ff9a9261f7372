package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gravitational/finance-session/lib"
	libtesting "github.com/gravitational/finance-session/lib/testing"
	"github.com/gravitational/finance-session/session"
	"github.com/gravitational/finance-session/session/api"
	"github.com/gravitational/finance-session/session/state"
)

func newTestApp(t *testing.T, backend state.Backend) *App {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := api.NewClient(api.Config{APIConfig: lib.APIConfig{URL: srv.URL}})
	require.NoError(t, err)
	manager, err := session.NewManager(session.ManagerConfig{Backend: backend, API: client})
	require.NoError(t, err)
	return newApp(manager)
}

type AppSuite struct {
	libtesting.Suite
}

func TestApp(t *testing.T) { suite.Run(t, &AppSuite{}) }

func (s *AppSuite) TestRunAndResume() {
	backend := state.NewMemoryBackend()
	s.Require().NoError(backend.Put(s.Ctx(), map[string]string{
		state.KeyAccessToken:  "a1",
		state.KeyRefreshToken: "r1",
		state.KeyExpiresIn:    state.FormatExpiry(time.Now().Add(time.Hour)),
	}))
	app := newTestApp(s.T(), backend)
	s.StartApp(app)

	s.Require().Eventually(func() bool {
		return app.manager.Holder().IsAuthenticated() && app.manager.Scheduler().Armed()
	}, time.Second, 5*time.Millisecond)

	app.Resume(s.Ctx())
	s.Require().True(app.manager.Scheduler().Armed())
}

func (s *AppSuite) TestShutdownStopsScheduler() {
	backend := state.NewMemoryBackend()
	s.Require().NoError(backend.Put(s.Ctx(), map[string]string{
		state.KeyAccessToken:  "a1",
		state.KeyRefreshToken: "r1",
		state.KeyExpiresIn:    state.FormatExpiry(time.Now().Add(time.Hour)),
	}))
	app := newTestApp(s.T(), backend)

	errC := make(chan error, 1)
	go func() { errC <- app.Run(s.Ctx()) }()
	s.Require().Eventually(app.manager.Scheduler().Armed, time.Second, 5*time.Millisecond)

	s.Require().NoError(app.Shutdown(s.Ctx()))
	s.Require().NoError(<-errC)
	s.Require().False(app.manager.Scheduler().Armed())
}

func TestAppCloseBeforeRun(t *testing.T) {
	app := newTestApp(t, state.NewMemoryBackend())
	app.Close()

	errC := make(chan error, 1)
	go func() { errC <- app.Run(context.Background()) }()

	select {
	case err := <-errC:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
}
