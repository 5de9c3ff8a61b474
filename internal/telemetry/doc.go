// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records send outcomes to a local SQLite database.
//
// One row per exchange: how long the stream ran, time to first token,
// token count, the terminal outcome, and whether the exchange reached the
// backend. The data stays on the user's machine; it exists so the stats
// view can answer "how fast are my answers" and so persistence
// divergences (visible but unsaved exchanges) leave a trace.
//
// # Key Types
//
//   - Recorder: the SQLite-backed sink
//   - SendRecord: one exchange outcome
//   - Stats: aggregates over recorded sends
package telemetry
