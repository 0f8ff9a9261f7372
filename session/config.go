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
	"time"

	"github.com/gravitational/trace"
)

const (
	// DefaultSafetyMargin is how long before expiry a refresh is attempted.
	DefaultSafetyMargin = 5 * time.Minute
	// DefaultMinDelay is the floor for every refresh delay.
	DefaultMinDelay = 60 * time.Second
	// DefaultRequestTimeout bounds a single refresh request.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultLoginAttempts is how many logins per email are allowed within LoginWindow.
	DefaultLoginAttempts = 5
	// DefaultLoginWindow is the login rate limit interval.
	DefaultLoginWindow = time.Minute
)

// Config is the [session] section of the agent configuration.
type Config struct {
	SafetyMargin   time.Duration `toml:"safety-margin" help:"Refresh the access token this long before it expires" default:"5m" env:"FINSESSION_SAFETY_MARGIN"`
	MinDelay       time.Duration `toml:"min-delay" help:"Never schedule a refresh sooner than this" default:"60s" env:"FINSESSION_MIN_DELAY"`
	RequestTimeout time.Duration `toml:"request-timeout" help:"Timeout of a single refresh request" default:"15s" env:"FINSESSION_REQUEST_TIMEOUT"`
	LoginAttempts  uint64        `toml:"login-attempts" help:"Login attempts allowed per email within login-window" default:"5" env:"FINSESSION_LOGIN_ATTEMPTS"`
	LoginWindow    time.Duration `toml:"login-window" help:"Login rate limit interval" default:"1m" env:"FINSESSION_LOGIN_WINDOW"`
}

// CheckAndSetDefaults validates the config and fills zero values with defaults.
func (c *Config) CheckAndSetDefaults() error {
	for name, value := range map[string]time.Duration{
		"session.safety-margin":   c.SafetyMargin,
		"session.min-delay":       c.MinDelay,
		"session.request-timeout": c.RequestTimeout,
		"session.login-window":    c.LoginWindow,
	} {
		if value < 0 {
			return trace.BadParameter("%s must not be negative, got %v", name, value)
		}
	}

	if c.SafetyMargin == 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	if c.MinDelay == 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.LoginAttempts == 0 {
		c.LoginAttempts = DefaultLoginAttempts
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = DefaultLoginWindow
	}
	return nil
}
