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

package session

import (
	"context"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/session/api"
	"github.com/gravitational/finance-session/session/state"
)

const refreshKey = "refresh"

// RefresherConfig configures a TokenRefresher.
type RefresherConfig struct {
	Store   *state.Store
	API     api.Refresher
	Timeout time.Duration
	Clock   clockwork.Clock
	Log     logrus.FieldLogger
	// OnRejected runs after a definitive rejection wiped the credentials.
	OnRejected func(ctx context.Context)
}

// TokenRefresher trades the stored refresh token for a new credential triple.
type TokenRefresher struct {
	store      *state.Store
	api        api.Refresher
	timeout    time.Duration
	clock      clockwork.Clock
	log        logrus.FieldLogger
	onRejected func(ctx context.Context)

	group singleflight.Group
}

// NewTokenRefresher returns a new TokenRefresher.
func NewTokenRefresher(conf RefresherConfig) (*TokenRefresher, error) {
	if conf.Store == nil {
		return nil, trace.BadParameter("missing store")
	}
	if conf.API == nil {
		return nil, trace.BadParameter("missing API client")
	}
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultRequestTimeout
	}
	if conf.Clock == nil {
		conf.Clock = clockwork.NewRealClock()
	}
	if conf.Log == nil {
		conf.Log = logger.Standard()
	}
	return &TokenRefresher{
		store:      conf.Store,
		api:        conf.API,
		timeout:    conf.Timeout,
		clock:      conf.Clock,
		log:        conf.Log,
		onRejected: conf.OnRejected,
	}, nil
}

// Refresh performs one refresh round trip and reports whether new
// credentials were stored. Concurrent callers share the same request.
func (r *TokenRefresher) Refresh(ctx context.Context) bool {
	result, _, _ := r.group.Do(refreshKey, func() (interface{}, error) {
		return r.refresh(ctx), nil
	})
	ok, _ := result.(bool)
	return ok
}

func (r *TokenRefresher) refresh(ctx context.Context) (ok bool) {
	log := r.log
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Token refresh panicked: %v", rec)
			ok = false
		}
	}()

	refreshToken, err := r.store.GetRefreshToken(ctx)
	if trace.IsNotFound(err) {
		log.Debug("No refresh token stored, skipping refresh")
		return false
	}
	if err != nil {
		log.WithError(err).Error("Failed to read the refresh token")
		return false
	}

	start := r.clock.Now()
	creds, err := r.exchange(ctx, refreshToken)
	log = log.WithField("duration", r.clock.Since(start))

	switch {
	case ctx.Err() != nil:
		log.WithError(ctx.Err()).Debug("Token refresh aborted")
		return false
	case trace.IsAccessDenied(err):
		err := r.store.RevokeCredentials(ctx, refreshToken)
		switch {
		case trace.IsCompareFailed(err):
			log.Debug("Session changed during the refresh, ignoring the rejection")
			return false
		case err != nil:
			log.WithError(err).Error("Failed to clear rejected credentials")
		default:
			log.Warn("Refresh token was rejected, credentials cleared")
		}
		if r.onRejected != nil {
			r.onRejected(ctx)
		}
		return false
	case err != nil:
		log.WithError(err).Warn("Token refresh failed")
		return false
	}

	err = r.store.ReplaceCredentials(ctx, refreshToken, creds)
	switch {
	case trace.IsCompareFailed(err):
		log.Debug("Session changed during the refresh, discarding the new credentials")
		return false
	case err != nil:
		log.WithError(err).Error("Error while storing the refreshed credentials")
		return false
	}
	log.WithField("expires_at", creds.ExpiresAt).Info("Access token refreshed")
	return true
}

func (r *TokenRefresher) exchange(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	creds, err := r.api.Refresh(ctx, refreshToken)
	return creds, trace.Wrap(err)
}
