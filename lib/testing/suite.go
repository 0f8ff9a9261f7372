package testing

import (
	"context"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gravitational/finance-session/lib/logger"
)

const defaultTimeout = 5 * time.Second

// Suite is a testify suite with a per-test context.
type Suite struct {
	suite.Suite
	ctx context.Context
}

// App is a long running component started by a test.
type App interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// SetContext sets the test context to time out after the given duration.
// The context carries a logger tagged with the test name.
func (s *Suite) SetContext(timeout time.Duration) context.Context {
	t := s.T()
	t.Helper()

	require.Nil(t, s.ctx, "Context cannot be set twice")

	ctx, _ := logger.WithField(context.Background(), "test", t.Name())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		cancel()
		s.ctx = nil
	})
	s.ctx = ctx
	return ctx
}

// Ctx returns the test context, creating one with the default timeout.
func (s *Suite) Ctx() context.Context {
	t := s.T()
	t.Helper()

	if ctx := s.ctx; ctx != nil {
		return ctx
	}
	return s.SetContext(defaultTimeout)
}

// StartApp runs the app in the background and shuts it down when the test ends.
func (s *Suite) StartApp(app App) {
	t := s.T()
	t.Helper()

	ctx := s.Ctx()
	errC := make(chan error, 1)
	go func() {
		errC <- app.Run(ctx)
	}()

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		assert.NoError(t, app.Shutdown(shutdownCtx))
		select {
		case err := <-errC:
			assert.NoError(t, err)
		case <-shutdownCtx.Done():
			assert.Fail(t, "app did not stop")
		}
	})
}
