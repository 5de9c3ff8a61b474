// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for lumina-tui.
//
// # Key Functions
//
//   - TruncateRunes: rune-safe truncation with ellipsis
//   - TruncateWidth: display-width truncation for fixed terminal columns
//   - PreviewText: single-line preview of message content for the sidebar
//   - AtomicWriteFile: crash-safe file writes (config persistence)
//   - IntToString: strconv wrapper used by the UI
package util
