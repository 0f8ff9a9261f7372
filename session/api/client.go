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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/finance-session/lib"
	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/session/state"
)

// Config configures the API client.
type Config struct {
	lib.APIConfig

	// Clock is used to turn relative expiry into absolute time.
	Clock clockwork.Clock
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
}

// CheckAndSetDefaults validates the config and fills in the defaults.
func (c *Config) CheckAndSetDefaults() error {
	if err := c.APIConfig.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Client implements Authorizer against the finance REST API.
type Client struct {
	client *resty.Client
	clock  clockwork.Clock
}

// NewClient returns a new Client.
func NewClient(conf Config) (*Client, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{
		client: makeAPIClient(conf.URL, conf.Timeout, conf.Transport),
		clock:  conf.Clock,
	}, nil
}

// Register implements Registrar. The account is created only on 201.
func (c *Client) Register(ctx context.Context, name string, email string, password string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(RegisterRequest{Name: name, Email: email, Password: password}).
		Post("user")
	if err != nil {
		if trace.IsAlreadyExists(err) {
			return trace.AlreadyExists("email %q is already registered", email)
		}
		return convertError(err)
	}
	if code := resp.StatusCode(); code != http.StatusCreated {
		return trace.BadParameter("unexpected registration response status %d", code)
	}
	logger.Get(ctx).WithField("email", email).Debug("Registered")
	return nil
}

// Login implements Authenticator.
func (c *Client) Login(ctx context.Context, email string, password string) (*LoginResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(LoginRequest{Email: email, Password: password}).
		Post("authorization")
	if err != nil {
		if trace.IsAccessDenied(err) {
			return nil, trace.AccessDenied("invalid email or password")
		}
		return nil, convertError(err)
	}
	if code := resp.StatusCode(); code != http.StatusOK && code != http.StatusCreated {
		return nil, trace.BadParameter("unexpected login response status %d", code)
	}

	var result LoginResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, trace.BadParameter("malformed login response: %v", err)
	}
	creds, err := c.credentials(result.TokenResponse)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	logger.Get(ctx).WithField("account_id", result.ID).Debug("Logged in")
	return &LoginResult{
		Credentials: *creds,
		Profile: state.Profile{
			AccountID: string(result.ID),
			Name:      result.Name,
		},
	}, nil
}

// Refresh implements Refresher.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(RefreshRequest{RefreshToken: refreshToken}).
		Post("refresh")
	if err != nil {
		return nil, convertError(err)
	}
	if code := resp.StatusCode(); code != http.StatusOK {
		return nil, trace.BadParameter("unexpected refresh response status %d", code)
	}

	var result TokenResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, trace.BadParameter("malformed refresh response: %v", err)
	}
	creds, err := c.credentials(result)
	return creds, trace.Wrap(err)
}

func (c *Client) credentials(resp TokenResponse) (*state.Credentials, error) {
	if err := resp.check(); err != nil {
		return nil, trace.Wrap(err)
	}
	expiresAt, err := c.expiresAt(resp)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &state.Credentials{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (c *Client) expiresAt(resp TokenResponse) (time.Time, error) {
	if resp.ExpiresIn > 0 {
		return c.clock.Now().UTC().Add(time.Duration(resp.ExpiresIn * float64(time.Second))), nil
	}
	if exp, ok := expiryFromToken(resp.AccessToken); ok {
		return exp, nil
	}
	return time.Time{}, trace.BadParameter("response has neither `expires_in` nor a token expiry")
}

// expiryFromToken reads the exp claim of a JWT access token without verifying it.
func expiryFromToken(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}

var _ Authorizer = &Client{}
