// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the session
// engine. Entities created locally before the backend has confirmed them
// carry a pending flag and a synthetic local id; Confirm converts them to
// server identity exactly once. Pending ids must never appear in backend
// calls.
//
// # Key Types
//
//   - Conversation: sidebar entry with title, preview and activity timestamp
//   - Message: single transcript message; assistant messages stream in place
//   - ChartSpec: opaque chart payload attached to an assistant message
//   - PageCursor: pagination state for the active conversation
//
// # Usage
//
// Create an optimistic conversation and confirm it later:
//
//	conv := model.NewPendingConversation("Total sales by region")
//	...
//	conv.Confirm(serverID, serverTitle, updatedAt)
package model
