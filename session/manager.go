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

// Package session keeps an authenticated session alive: it rehydrates the
// session from the credential store, refreshes the access token ahead of its
// expiry and handles login and logout.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
	"github.com/sirupsen/logrus"

	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/session/api"
	"github.com/gravitational/finance-session/session/state"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Config

	Backend state.Backend
	API     api.Authorizer
	Clock   clockwork.Clock
	Log     logrus.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in the defaults.
func (c *ManagerConfig) CheckAndSetDefaults() error {
	if err := c.Config.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	if c.Backend == nil {
		return trace.BadParameter("missing credential store backend")
	}
	if c.API == nil {
		return trace.BadParameter("missing API client")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logger.Standard()
	}
	return nil
}

// Report describes the session for status output.
type Report struct {
	Status      Status
	Profile     state.Profile
	ExpiresAt   time.Time
	NextRefresh time.Time
	Armed       bool
}

// Manager owns the whole session lifecycle.
type Manager struct {
	store     *state.Store
	api       api.Authorizer
	clock     clockwork.Clock
	log       logrus.FieldLogger
	holder    *Holder
	refresher *TokenRefresher
	scheduler *Scheduler
	limiter   limiter.Store

	// ctx outlives the calls that arm the scheduler.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager wires a manager. Start must be called before use.
func NewManager(conf ManagerConfig) (*Manager, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	rl, err := memorystore.New(&memorystore.Config{
		Tokens:   conf.LoginAttempts,
		Interval: conf.LoginWindow,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, conf.Log)

	m := &Manager{
		store:   state.NewStore(conf.Backend),
		api:     conf.API,
		clock:   conf.Clock,
		log:     conf.Log,
		limiter: rl,
		ctx:     ctx,
		cancel:  cancel,
	}

	m.refresher, err = NewTokenRefresher(RefresherConfig{
		Store:      m.store,
		API:        conf.API,
		Timeout:    conf.RequestTimeout,
		Clock:      conf.Clock,
		Log:        conf.Log.WithField("component", "refresher"),
		OnRejected: m.onRejected,
	})
	if err != nil {
		cancel()
		return nil, trace.Wrap(err)
	}
	m.scheduler = NewScheduler(SchedulerConfig{
		SafetyMargin: conf.SafetyMargin,
		MinDelay:     conf.MinDelay,
		Clock:        conf.Clock,
		Log:          conf.Log.WithField("component", "scheduler"),
	}, m.refreshToken, m.store.GetExpiresAt)
	m.holder = NewHolder(m.store, m.scheduler)

	return m, nil
}

// Holder returns the session state holder.
func (m *Manager) Holder() *Holder {
	return m.holder
}

// Scheduler returns the refresh scheduler.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Start resolves the session status and, for an authenticated session,
// schedules the first refresh.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.holder.Initialize(ctx); err != nil {
		return trace.Wrap(err)
	}
	m.log.WithField("status", m.holder.Status()).Info("Session initialized")
	if m.holder.IsAuthenticated() {
		m.armFromStore(ctx)
	}
	return nil
}

// Login validates the credentials, exchanges them for a session, persists it
// and then switches the holder to authenticated.
func (m *Manager) Login(ctx context.Context, email, password string) (*state.Profile, error) {
	email = strings.TrimSpace(email)
	if err := ValidateLogin(email, password); err != nil {
		return nil, trace.Wrap(err)
	}

	if err := m.throttle(ctx, email); err != nil {
		return nil, trace.Wrap(err)
	}

	log := logger.Get(ctx).WithField("email", email)
	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := m.store.PutLogin(ctx, &result.Credentials, &result.Profile); err != nil {
		return nil, trace.Wrap(err, "persisting the session")
	}
	if err := m.holder.Login(result.Credentials.AccessToken); err != nil {
		return nil, trace.Wrap(err)
	}

	m.scheduler.Cancel()
	delay := m.scheduler.Arm(m.ctx, result.Credentials.ExpiresAt)
	log.WithField("next_refresh", delay).Info("Logged in")
	return &result.Profile, nil
}

// Register creates a new account. It does not log in, the caller follows up
// with Login.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := ValidateRegistration(name, email, password); err != nil {
		return trace.Wrap(err)
	}
	if err := m.throttle(ctx, email); err != nil {
		return trace.Wrap(err)
	}
	if err := m.api.Register(ctx, name, email, password); err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).WithField("email", email).Info("Registered")
	return nil
}

// Logout removes the session. It is safe to call repeatedly.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.holder.Logout(ctx); err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).Info("Logged out")
	return nil
}

// Refresh refreshes the access token of an authenticated session right away
// and re-arms the scheduler on success.
func (m *Manager) Refresh(ctx context.Context) bool {
	if !m.holder.IsAuthenticated() {
		logger.Get(ctx).Debug("No active session, skipping refresh")
		return false
	}
	if !m.refreshToken(ctx) {
		return false
	}
	m.armFromStore(ctx)
	return true
}

// Resume is the foreground event. An authenticated session whose
// scheduler went idle gets re-armed from the stored expiry.
func (m *Manager) Resume(ctx context.Context) {
	if !m.holder.IsAuthenticated() {
		return
	}
	if m.scheduler.Armed() {
		return
	}
	logger.Get(ctx).Debug("Resuming idle scheduler")
	m.armFromStore(ctx)
}

// Report summarizes the session.
func (m *Manager) Report(ctx context.Context) (*Report, error) {
	profile, err := m.store.GetProfile(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	report := &Report{
		Status:  m.holder.Status(),
		Profile: *profile,
	}
	expiresAt, err := m.store.GetExpiresAt(ctx)
	switch {
	case err == nil:
		report.ExpiresAt = expiresAt
	case trace.IsNotFound(err), trace.IsBadParameter(err):
	default:
		return nil, trace.Wrap(err)
	}
	report.NextRefresh, report.Armed = m.scheduler.NextRefresh()
	return report, nil
}

// Close stops the scheduler and releases the store.
func (m *Manager) Close() error {
	m.scheduler.Cancel()
	m.cancel()
	var errs []error
	if err := m.limiter.Close(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return trace.NewAggregate(errs...)
}

// throttle counts an attempt against the email, case-insensitively.
func (m *Manager) throttle(ctx context.Context, email string) error {
	_, _, reset, ok, err := m.limiter.Take(ctx, strings.ToLower(email))
	if err != nil {
		return trace.Wrap(err)
	}
	if !ok {
		retryIn := time.Unix(0, int64(reset)).Sub(m.clock.Now()).Round(time.Second)
		return trace.LimitExceeded("too many attempts, retry in %v", retryIn)
	}
	return nil
}

// refreshToken runs the refresher and hands the new access token to the holder.
func (m *Manager) refreshToken(ctx context.Context) bool {
	if !m.refresher.Refresh(ctx) {
		return false
	}
	token, err := m.store.GetAccessToken(ctx)
	if err != nil {
		logger.Get(ctx).WithError(err).Error("Refreshed access token is not readable")
		return false
	}
	m.holder.UpdateToken(token)
	return true
}

func (m *Manager) armFromStore(ctx context.Context) {
	if !m.holder.IsAuthenticated() {
		return
	}
	log := logger.Get(ctx)
	expiresAt, err := m.store.GetExpiresAt(ctx)
	if err != nil {
		log.WithError(err).Warn("Stored expiry is missing or invalid, refreshing soon")
		m.scheduler.ArmUnknown(m.ctx)
		return
	}
	m.scheduler.Arm(m.ctx, expiresAt)
}

func (m *Manager) onRejected(ctx context.Context) {
	m.scheduler.Cancel()
	m.holder.Invalidate()
	logger.Get(ctx).Warn("Session invalidated")
}
