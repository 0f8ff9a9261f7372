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

	"github.com/gravitational/trace"

	"github.com/gravitational/finance-session/session/state"
)

// Status is the authentication status of the session.
type Status int

const (
	// StatusUnknown means the store has not been read yet.
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const subscriberBuffer = 8

// Canceler stops pending background work.
type Canceler interface {
	Cancel()
}

// Holder keeps the in-memory session state.
type Holder struct {
	store    *state.Store
	canceler Canceler

	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.RWMutex // protects the below fields
	status      Status
	accessToken string
	subscribers []chan Status
}

// NewHolder returns a holder in StatusUnknown. canceler may be nil.
func NewHolder(store *state.Store, canceler Canceler) *Holder {
	return &Holder{
		store:    store,
		canceler: canceler,
		ready:    make(chan struct{}),
	}
}

// Initialize reads the stored access token once and resolves the status.
// Subsequent calls are no-ops.
func (h *Holder) Initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusUnknown {
		return nil
	}

	token, err := h.store.GetAccessToken(ctx)
	switch {
	case trace.IsNotFound(err):
		h.setLocked(StatusUnauthenticated, "")
	case err != nil:
		return trace.Wrap(err, "reading the stored access token")
	default:
		h.setLocked(StatusAuthenticated, token)
	}
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

// Ready is closed once the status is no longer unknown.
func (h *Holder) Ready() <-chan struct{} {
	return h.ready
}

// Login switches to the authenticated state with the given token. It
// only touches memory, callers must have persisted the credentials first.
func (h *Holder) Login(token string) error {
	if token == "" {
		return trace.BadParameter("missing access token")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusUnknown {
		return trace.CompareFailed("session is not initialized yet")
	}
	h.setLocked(StatusAuthenticated, token)
	return nil
}

// Logout stops the scheduler, removes the session from the store and
// only then forgets it in memory. Calling it again is a no-op.
func (h *Holder) Logout(ctx context.Context) error {
	if h.canceler != nil {
		h.canceler.Cancel()
	}
	if err := h.store.ClearSession(ctx); err != nil {
		return trace.Wrap(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setLocked(StatusUnauthenticated, "")
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

// UpdateToken replaces the token of an authenticated session after a refresh.
func (h *Holder) UpdateToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusAuthenticated && token != "" {
		h.accessToken = token
	}
}

// Invalidate forgets the session in memory after the store was cleared elsewhere.
func (h *Holder) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusUnknown {
		return
	}
	h.setLocked(StatusUnauthenticated, "")
}

// Status returns the current status.
func (h *Holder) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// IsAuthenticated returns true only for StatusAuthenticated.
func (h *Holder) IsAuthenticated() bool {
	return h.Status() == StatusAuthenticated
}

// AccessToken returns the in-memory access token.
func (h *Holder) AccessToken() (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status != StatusAuthenticated {
		return "", trace.AccessDenied("session is %s", h.status)
	}
	return h.accessToken, nil
}

// Subscribe returns a channel receiving every status change. Slow
// subscribers miss updates rather than block the holder.
func (h *Holder) Subscribe() <-chan Status {
	ch := make(chan Status, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, ch)
	return ch
}

func (h *Holder) setLocked(status Status, token string) {
	changed := h.status != status
	h.status = status
	h.accessToken = token
	if !changed {
		return
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}
