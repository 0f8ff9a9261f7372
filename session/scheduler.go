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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/gravitational/finance-session/lib/logger"
)

// RefreshDelay returns how long to wait before refreshing a token that
// expires at expiresAt. The result is never below minDelay.
func RefreshDelay(expiresAt, now time.Time, margin, minDelay time.Duration) time.Duration {
	delay := expiresAt.Sub(now) - margin
	if delay < minDelay {
		return minDelay
	}
	return delay
}

// RefreshFunc performs one refresh and reports whether it succeeded.
type RefreshFunc func(ctx context.Context) bool

// ExpiryFunc returns the currently stored expiry.
type ExpiryFunc func(ctx context.Context) (time.Time, error)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	SafetyMargin time.Duration
	MinDelay     time.Duration
	Clock        clockwork.Clock
	Log          logrus.FieldLogger
}

// Scheduler owns a single one-shot refresh timer. Every successful refresh
// re-arms it from the freshly stored expiry, a failed one leaves it idle.
type Scheduler struct {
	margin   time.Duration
	minDelay time.Duration
	clock    clockwork.Clock
	log      logrus.FieldLogger
	refresh  RefreshFunc
	expiry   ExpiryFunc

	mu sync.Mutex // protects the below fields
	// generation changes on every Arm and Cancel so a callback that
	// outlived its timer can tell it must not re-arm.
	generation uint64
	timer      clockwork.Timer
	next       time.Time
	// stopChain aborts the refresh chain started by the last Arm,
	// including a request that is already on the wire.
	stopChain context.CancelFunc
}

// NewScheduler returns an idle scheduler.
func NewScheduler(conf SchedulerConfig, refresh RefreshFunc, expiry ExpiryFunc) *Scheduler {
	if conf.SafetyMargin == 0 {
		conf.SafetyMargin = DefaultSafetyMargin
	}
	if conf.MinDelay <= 0 {
		conf.MinDelay = DefaultMinDelay
	}
	if conf.Clock == nil {
		conf.Clock = clockwork.NewRealClock()
	}
	if conf.Log == nil {
		conf.Log = logger.Standard()
	}
	return &Scheduler{
		margin:   conf.SafetyMargin,
		minDelay: conf.MinDelay,
		clock:    conf.Clock,
		log:      conf.Log,
		refresh:  refresh,
		expiry:   expiry,
	}
}

// Arm cancels any live timer and schedules a refresh ahead of expiresAt.
func (s *Scheduler) Arm(ctx context.Context, expiresAt time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armLocked(s.startChainLocked(ctx), RefreshDelay(expiresAt, s.clock.Now(), s.margin, s.minDelay))
}

// ArmUnknown schedules a refresh after the minimal delay. It is used when
// there is a token but no valid expiry.
func (s *Scheduler) ArmUnknown(ctx context.Context) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armLocked(s.startChainLocked(ctx), s.minDelay)
}

// Cancel stops the live timer if there is one and aborts a refresh that is
// already running. The aborted callback does not re-arm.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.stopChainLocked()
	s.generation++
}

// Armed reports whether a refresh is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// NextRefresh returns the time of the pending refresh.
func (s *Scheduler) NextRefresh() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.next, true
}

func (s *Scheduler) armLocked(ctx context.Context, delay time.Duration) time.Duration {
	s.stopLocked()
	s.generation++
	generation := s.generation
	s.next = s.clock.Now().Add(delay)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(ctx, generation) })
	s.log.Debugf("Will attempt token refresh in: %s", delay)
	return delay
}

func (s *Scheduler) startChainLocked(ctx context.Context) context.Context {
	s.stopChainLocked()
	ctx, s.stopChain = context.WithCancel(ctx)
	return ctx
}

func (s *Scheduler) stopChainLocked() {
	if s.stopChain != nil {
		s.stopChain()
		s.stopChain = nil
	}
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.next = time.Time{}
}

func (s *Scheduler) fire(ctx context.Context, generation uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Token refresh panicked: %v", r)
		}
	}()

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.next = time.Time{}
	s.mu.Unlock()

	if !s.refresh(ctx) {
		s.log.Warn("Token refresh failed, the scheduler stays idle until the next resume or login")
		return
	}

	expiresAt, err := s.expiry(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		s.log.Debug("Scheduler was cancelled or re-armed during the refresh")
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("Refreshed expiry is not readable")
		s.armLocked(ctx, s.minDelay)
		return
	}
	delay := s.armLocked(ctx, RefreshDelay(expiresAt, s.clock.Now(), s.margin, s.minDelay))
	s.log.Debugf("Successfully refreshed credentials. Next refresh in: %s", delay)
}
