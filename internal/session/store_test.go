// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"testing"
	"time"
)

func TestNewStoreStartsEphemeral(t *testing.T) {
	s := NewStore()

	if s.Authenticated() {
		t.Error("new store should not be authenticated")
	}
	if _, ok := s.Credential(); ok {
		t.Error("new store should not expose a credential")
	}
	if s.SessionID() == "" {
		t.Error("new store should have a session id")
	}
}

func TestAuthenticate(t *testing.T) {
	s := NewStore()
	before := s.SessionID()

	s.Authenticate("tok-123")

	if !s.Authenticated() {
		t.Error("store should be authenticated after Authenticate")
	}
	cred, ok := s.Credential()
	if !ok || cred != "tok-123" {
		t.Errorf("Credential() = %q, %v, want %q, true", cred, ok, "tok-123")
	}
	if s.SessionID() != before {
		t.Error("Authenticate should keep the session id")
	}
}

func TestLogoutClearsCredentialAndRotatesID(t *testing.T) {
	s := NewStore()
	s.Authenticate("tok-123")
	before := s.SessionID()

	s.Logout()

	if s.Authenticated() {
		t.Error("store should not be authenticated after Logout")
	}
	if _, ok := s.Credential(); ok {
		t.Error("credential should be cleared after Logout")
	}
	if s.SessionID() == before {
		t.Error("Logout should rotate the session id")
	}
}

func TestLogoutRunsHooksInOrder(t *testing.T) {
	s := NewStore()

	var order []int
	s.OnLogout(func() { order = append(order, 1) })
	s.OnLogout(func() { order = append(order, 2) })
	s.OnLogout(nil)

	s.Logout()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("hooks ran as %v, want [1 2]", order)
	}
}

func TestLogoutHookMayCallStore(t *testing.T) {
	s := NewStore()

	done := make(chan struct{})
	s.OnLogout(func() {
		// Must not deadlock.
		_ = s.Authenticated()
		close(done)
	})

	go s.Logout()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logout hook deadlocked against the store")
	}
}

func TestActivityTracking(t *testing.T) {
	s := NewStore()

	s.RecordActivity()
	if idle := s.IdleTime(); idle > time.Second {
		t.Errorf("idle time %v too large right after activity", idle)
	}
	if s.Duration() < 0 {
		t.Error("duration should never be negative")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Authenticate("tok")
				s.Credential()
				s.RecordActivity()
				s.Logout()
			}
		}()
	}
	wg.Wait()
}
