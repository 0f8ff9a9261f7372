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

// Package api talks to the authentication endpoints of the finance backend.
package api

import (
	"context"

	"github.com/gravitational/finance-session/session/state"
)

// Authorizer is the full set of authentication calls.
type Authorizer interface {
	Registrar
	Authenticator
	Refresher
}

// Registrar creates new accounts. An already registered email is reported
// as trace.AlreadyExists.
type Registrar interface {
	Register(ctx context.Context, name string, email string, password string) error
}

// Authenticator exchanges user credentials for a session.
type Authenticator interface {
	Login(ctx context.Context, email string, password string) (*LoginResult, error)
}

// Refresher exchanges a refresh token for a new credential triple.
// A definitive rejection of the refresh token is reported as trace.AccessDenied,
// anything else is transient.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error)
}

// LoginResult is a successful login.
type LoginResult struct {
	Credentials state.Credentials
	Profile     state.Profile
}
