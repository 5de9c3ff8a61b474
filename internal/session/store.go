// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// Store tracks the identity state for one running client: whether the
// session is authenticated, the opaque bearer credential, and a session id
// used to correlate query streams on the backend.
//
// The Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	sessionID    string
	credential   string
	startTime    time.Time
	lastActivity time.Time

	// Teardown hooks run on logout, in registration order. Components
	// register cache-clearing here so ephemeral state never leaks across
	// identities.
	onLogout []func()
}

// NewStore creates a session store in the anonymous (ephemeral) state.
func NewStore() *Store {
	now := time.Now()
	return &Store{
		sessionID:    uuid.NewString(),
		startTime:    now,
		lastActivity: now,
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

// Authenticate installs the bearer credential, flipping the session into
// persistent mode. The transition anonymous → authenticated keeps the
// session id: in-flight streams stay correlated.
func (s *Store) Authenticate(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
}

// Authenticated reports whether a credential is installed. All
// persistence-aware behavior is gated on this.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

// Credential returns the opaque bearer credential. The second return is
// false in ephemeral mode. Implements api.CredentialSource.
func (s *Store) Credential() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.credential != ""
}

// SessionID returns the id correlating this client's query streams.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// OnLogout registers a teardown hook. Hooks run synchronously inside
// Logout, in registration order.
func (s *Store) OnLogout(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Logout clears the credential, rotates the session id and runs all
// teardown hooks so derived caches are emptied.
func (s *Store) Logout() {
	s.mu.Lock()
	s.credential = ""
	s.sessionID = uuid.NewString()
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()

	// Hooks run outside the lock: they call back into components that may
	// touch the store.
	for _, fn := range hooks {
		fn()
	}
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last-activity timestamp. Called on user input.
func (s *Store) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// IdleTime returns how long since the last recorded activity.
func (s *Store) IdleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// Duration returns how long the session has existed.
func (s *Store) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startTime)
}
