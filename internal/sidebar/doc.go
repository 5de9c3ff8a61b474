// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sidebar maintains the in-memory list of conversations shown in
// the sidebar, ordered by most recent activity.
//
// The cache is the single source of truth the UI renders from. Loads are
// fail-soft: a backend error leaves the current items in place so the user
// keeps a usable (possibly stale) list. Mutations that must not diverge
// from the server (rename, delete) go backend-first and only touch the
// cache after the call succeeds. Optimistic pending conversations are
// inserted locally and confirmed in place once the server assigns an id.
//
// # Key Types
//
//   - Cache: the conversation list with load, upsert and mutation ops
//   - Backend: the slice of the API client the cache needs
//
// # Usage
//
//	cache := sidebar.NewCache(client)
//	if err := cache.Load(ctx); err != nil {
//	    // stale items still render
//	}
//	items := cache.Items()
package sidebar
