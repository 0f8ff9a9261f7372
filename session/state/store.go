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

package state

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/trace"
)

// Store is the typed view of the credential keys on top of a Backend.
// Multi-key reads and writes are serialized so a reader never sees
// a mix of old and new credentials.
type Store struct {
	backend Backend

	mu sync.RWMutex
}

// NewStore wraps the backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// GetAccessToken returns the stored access token or trace.NotFound.
func (s *Store) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequired(ctx, KeyAccessToken)
}

// GetRefreshToken returns the stored refresh token or trace.NotFound.
func (s *Store) GetRefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequired(ctx, KeyRefreshToken)
}

// GetExpiresAt returns the stored absolute expiry. It fails with
// trace.NotFound when there is none and trace.BadParameter when the
// stored value is not a valid absolute timestamp.
func (s *Store) GetExpiresAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, err := s.getRequired(ctx, KeyExpiresIn)
	if err != nil {
		return time.Time{}, trace.Wrap(err)
	}
	expiresAt, err := ParseExpiry(value)
	return expiresAt, trace.Wrap(err)
}

// GetCredentials reads the full credential triple.
func (s *Store) GetCredentials(ctx context.Context) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds Credentials
	var err error
	if creds.AccessToken, err = s.getRequired(ctx, KeyAccessToken); err != nil {
		return nil, trace.Wrap(err)
	}
	if creds.RefreshToken, err = s.getRequired(ctx, KeyRefreshToken); err != nil {
		return nil, trace.Wrap(err)
	}
	expiresIn, err := s.getRequired(ctx, KeyExpiresIn)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if creds.ExpiresAt, err = ParseExpiry(expiresIn); err != nil {
		return nil, trace.Wrap(err)
	}
	return &creds, nil
}

// PutCredentials stores the credential triple in one backend write.
func (s *Store) PutCredentials(ctx context.Context, creds *Credentials) error {
	if err := creds.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return trace.Wrap(s.backend.Put(ctx, credentialValues(creds)))
}

// PutLogin stores the credentials together with the user profile.
func (s *Store) PutLogin(ctx context.Context, creds *Credentials, profile *Profile) error {
	if err := creds.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	values := credentialValues(creds)
	if profile != nil {
		values[KeyAccountID] = profile.AccountID
		values[KeyName] = profile.Name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return trace.Wrap(s.backend.Put(ctx, values))
}

// ReplaceCredentials stores creds only while the stored refresh token is
// still refreshToken. It fails with trace.CompareFailed when the session
// was replaced or removed in the meantime.
func (s *Store) ReplaceCredentials(ctx context.Context, refreshToken string, creds *Credentials) error {
	if err := creds.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.compareRefreshTokenLocked(ctx, refreshToken); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(s.backend.Put(ctx, credentialValues(creds)))
}

// RevokeCredentials removes the credential triple only while the stored
// refresh token is still refreshToken. It fails with trace.CompareFailed
// otherwise.
func (s *Store) RevokeCredentials(ctx context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.compareRefreshTokenLocked(ctx, refreshToken); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(s.backend.Delete(ctx, CredentialKeys...))
}

// GetProfile returns whatever profile fields are stored. Missing fields are
// left empty.
func (s *Store) GetProfile(ctx context.Context) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profile Profile
	var err error
	if profile.AccountID, err = s.getOptional(ctx, KeyAccountID); err != nil {
		return nil, trace.Wrap(err)
	}
	if profile.Name, err = s.getOptional(ctx, KeyName); err != nil {
		return nil, trace.Wrap(err)
	}
	return &profile, nil
}

// ClearSession removes everything logout is supposed to remove.
func (s *Store) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trace.Wrap(s.backend.Delete(ctx, SessionKeys...))
}

// Close closes the backend.
func (s *Store) Close() error {
	return trace.Wrap(s.backend.Close())
}

func (s *Store) compareRefreshTokenLocked(ctx context.Context, expected string) error {
	current, err := s.getOptional(ctx, KeyRefreshToken)
	if err != nil {
		return trace.Wrap(err)
	}
	if current != expected {
		return trace.CompareFailed("refresh token was replaced")
	}
	return nil
}

func (s *Store) getRequired(ctx context.Context, key string) (string, error) {
	value, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", trace.Wrap(err)
	}
	if value == "" {
		return "", trace.NotFound("state does not contain `%s`", key)
	}
	return value, nil
}

func (s *Store) getOptional(ctx context.Context, key string) (string, error) {
	value, err := s.backend.Get(ctx, key)
	if trace.IsNotFound(err) {
		return "", nil
	}
	return value, trace.Wrap(err)
}

func credentialValues(creds *Credentials) map[string]string {
	return map[string]string{
		KeyAccessToken:  creds.AccessToken,
		KeyRefreshToken: creds.RefreshToken,
		KeyExpiresIn:    FormatExpiry(creds.ExpiresAt),
	}
}
