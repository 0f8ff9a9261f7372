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
	"bytes"
	"strings"

	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest is the body of POST /authorization.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /user.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by both endpoints. ExpiresIn is relative, in seconds.
type TokenResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	ExpiresIn    float64 `json:"expires_in"`
}

// LoginResponse is returned by POST /authorization.
type LoginResponse struct {
	TokenResponse
	ID   AccountID `json:"id"`
	Name string    `json:"name"`
}

// ErrorResponse is the usual shape of a failed request body.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// AccountID accepts both numeric and string ids.
type AccountID string

func (id *AccountID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return trace.Wrap(err)
		}
		*id = AccountID(s)
		return nil
	}
	var n jsoniter.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return trace.BadParameter("account id %s is neither a number nor a string", data)
	}
	*id = AccountID(strings.TrimSpace(n.String()))
	return nil
}

func (r TokenResponse) check() error {
	switch {
	case r.AccessToken == "":
		return trace.BadParameter("response does not contain `accessToken`")
	case r.RefreshToken == "":
		return trace.BadParameter("response does not contain `refreshToken`")
	case r.ExpiresIn < 0:
		return trace.BadParameter("response contains negative `expires_in`")
	}
	return nil
}
