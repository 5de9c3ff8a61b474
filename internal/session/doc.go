// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the session store: identity state and the gate
// for all persistence-aware behavior.
//
// The store owns the authenticated flag and the opaque bearer credential.
// Components never read ambient globals; they hold the store passed to
// their constructor. Without a credential the engine runs in ephemeral
// mode: history lives only in memory and no backend writes happen.
//
// # Key Types
//
//   - Store: identity flag, bearer credential, session id, logout hooks
//
// # Usage
//
//	store := session.NewStore()
//	store.Authenticate(token)
//	...
//	store.Logout() // runs teardown hooks, clears derived caches
package session
