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
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"
)

const (
	maxConns = 10

	// RequestIDHeader carries a fresh uuid on every request.
	RequestIDHeader = "X-Request-ID"
)

// rejectionCodes are the OAuth-style error codes that mean the token will never work again.
var rejectionCodes = map[string]struct{}{
	"invalid_grant": {},
	"invalid_token": {},
}

func makeAPIClient(baseURL string, timeout time.Duration, transport http.RoundTripper) *resty.Client {
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     maxConns,
			MaxIdleConnsPerHost: maxConns,
		}
	}
	client := resty.
		NewWithClient(&http.Client{
			Timeout:   timeout,
			Transport: transport,
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBaseURL(baseURL).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader(RequestIDHeader, uuid.NewString())
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			if resp.IsSuccess() {
				return nil
			}
			return classifyResponse(resp.StatusCode(), resp.Body())
		})
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return client
}

// classifyResponse turns a non-2xx response into a trace error.
// AccessDenied is reserved for definitive rejections.
func classifyResponse(status int, body []byte) error {
	code, message := errorDetails(body)
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return trace.AccessDenied("%s (status %d)", message, status)
	case status == http.StatusBadRequest && isRejectionCode(code):
		return trace.AccessDenied("%s: %s (status %d)", code, message, status)
	case status == http.StatusConflict:
		return trace.AlreadyExists("%s (status %d)", message, status)
	case status == http.StatusTooManyRequests:
		return trace.LimitExceeded("%s (status %d)", message, status)
	case status >= http.StatusInternalServerError:
		return trace.ConnectionProblem(nil, "server error: %s (status %d)", message, status)
	default:
		return trace.BadParameter("unexpected response: %s (status %d)", message, status)
	}
}

func errorDetails(body []byte) (code string, message string) {
	if !gjson.ValidBytes(body) {
		return "", strings.TrimSpace(truncate(string(body), 200))
	}
	result := gjson.GetManyBytes(body, "error", "message", "error_description")
	code = result[0].String()
	switch {
	case result[1].String() != "":
		message = result[1].String()
	case result[2].String() != "":
		message = result[2].String()
	default:
		message = code
	}
	return code, message
}

func isRejectionCode(code string) bool {
	_, ok := rejectionCodes[strings.ToLower(code)]
	return ok
}

// convertError keeps classified response errors and marks everything else,
// transport failures and timeouts included, as a connection problem.
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case trace.IsAccessDenied(err), trace.IsConnectionProblem(err),
		trace.IsBadParameter(err), trace.IsLimitExceeded(err), trace.IsAlreadyExists(err):
		return trace.Wrap(err)
	default:
		return trace.ConnectionProblem(err, "request failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
