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

// Package state persists the session credentials in a string key/value store.
package state

import (
	"context"
	"strconv"
	"time"

	"github.com/gravitational/trace"
)

// Persisted keys. All values are strings.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	// KeyExpiresIn holds the absolute access token expiry in Unix milliseconds.
	// The name is kept for compatibility with existing stores.
	KeyExpiresIn = "expiresIn"
	KeyAccountID = "accountId"
	KeyName      = "name"
)

// CredentialKeys are wiped when the server rejects the refresh token.
var CredentialKeys = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresIn}

// SessionKeys are wiped on logout. The display name is kept.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresIn, KeyAccountID}

// minAbsoluteExpiryMillis separates absolute timestamps from relative
// "seconds left" values that older clients stored under the same key.
const minAbsoluteExpiryMillis = 1e11

// Backend is a string key/value store.
type Backend interface {
	// Get returns the value or trace.NotFound.
	Get(ctx context.Context, key string) (string, error)
	// Put writes all values. Readers never observe a partial write.
	Put(ctx context.Context, values map[string]string) error
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the backend resources.
	Close() error
}

// Credentials represents the short-lived session credentials.
type Credentials struct {
	// AccessToken is the Bearer token used to access the finance API.
	AccessToken string
	// RefreshToken is used to acquire a new access token.
	RefreshToken string
	// ExpiresAt marks the end of validity period for the access token.
	// The application must use the refresh token to acquire a new access token
	// before this time.
	ExpiresAt time.Time
}

// CheckAndSetDefaults validates the credentials before they are stored.
func (c *Credentials) CheckAndSetDefaults() error {
	switch {
	case c.AccessToken == "":
		return trace.BadParameter("credentials do not contain `AccessToken`")
	case c.RefreshToken == "":
		return trace.BadParameter("credentials do not contain `RefreshToken`")
	case c.ExpiresAt.IsZero():
		return trace.BadParameter("credentials do not contain `ExpiresAt`")
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	return nil
}

// Profile holds the user fields returned on login.
type Profile struct {
	AccountID string
	Name      string
}

// FormatExpiry encodes an absolute expiry for storage.
func FormatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseExpiry decodes a stored expiry. Relative or garbled values are
// rejected with trace.BadParameter.
func ParseExpiry(value string) (time.Time, error) {
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, trace.BadParameter("stored expiry %q is not a number", value)
	}
	if millis < minAbsoluteExpiryMillis {
		return time.Time{}, trace.BadParameter("stored expiry %q is not an absolute timestamp", value)
	}
	return time.UnixMilli(millis).UTC(), nil
}
