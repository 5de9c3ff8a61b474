// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller binds user actions to the session engine.
//
// The controller owns the active-conversation pointer and orchestrates
// the other components: a send inserts the user message and an assistant
// placeholder optimistically, opens the answer stream, lets the ingestor
// fold it into the buffer, and hands the finished exchange to the
// reconciler. Switching conversations aborts any in-flight stream before
// the buffer is reloaded, so a late stream can never write into a
// conversation the user has left.
//
// One controller serves one session. Send blocks until its stream
// reaches a terminal state; the UI runs it off the render loop and
// receives change notifications through the configured callback.
package controller
