/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"sync"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gravitational/finance-session/lib"
	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/session"
)

// App is the long running agent. It owns the session manager and reports
// session changes until terminated.
type App struct {
	manager *session.Manager

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// NewApp wires the session manager from the CLI config.
func NewApp(cli *CLI) (*App, error) {
	manager, err := cli.newManager(context.Background())
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return newApp(manager), nil
}

func newApp(manager *session.Manager) *App {
	return &App{
		manager: manager,
		done:    make(chan struct{}),
	}
}

// Run starts the session and blocks until the app is terminated.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)
	defer a.manager.Close()

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	if a.stopped {
		cancel()
	}
	a.mu.Unlock()
	defer cancel()

	log := logger.Get(ctx)
	log.Infof("Starting %s", lib.VersionString(appName, lib.Version, lib.Gitref))

	updates := a.manager.Holder().Subscribe()
	if err := a.manager.Start(ctx); err != nil {
		return trace.Wrap(err)
	}
	if !a.manager.Holder().IsAuthenticated() {
		log.Warn("No stored session, run the login command to create one")
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.watchSession(ctx, updates)
	})
	group.Go(func() error {
		return a.reportSession(ctx)
	})

	err := group.Wait()
	if lib.IsCanceled(err) {
		return nil
	}
	return trace.Wrap(err)
}

func (a *App) watchSession(ctx context.Context, updates <-chan session.Status) error {
	log := logger.Get(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-updates:
			log.WithField("status", status).Info("Session status changed")
			if status == session.StatusUnauthenticated {
				log.Warn("Session is gone, run the login command to create a new one")
			}
		}
	}
}

func (a *App) reportSession(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.manager.Holder().Ready():
	}
	report, err := a.manager.Report(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).WithFields(logger.Fields{
		"status":       report.Status,
		"name":         report.Profile.Name,
		"expires_at":   report.ExpiresAt,
		"next_refresh": report.NextRefresh,
	}).Info("Session loaded")
	return nil
}

// Resume re-arms an idle refresh scheduler.
func (a *App) Resume(ctx context.Context) {
	a.manager.Resume(ctx)
}

// Shutdown stops the app and waits for it to finish.
func (a *App) Shutdown(ctx context.Context) error {
	a.stop()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return trace.Wrap(ctx.Err())
	}
}

// Close stops the app without waiting.
func (a *App) Close() {
	a.stop()
}

func (a *App) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
	}
}

var (
	_ lib.Terminable = &App{}
	_ lib.Resumable  = &App{}
)
