// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reconcile persists a finished exchange and aligns local state
// with server-assigned identity.
//
// After a stream ends, the reconciler creates the conversation on the
// backend if it only exists locally, persists the user and assistant
// messages, attaches the chart artifact when one was produced, and
// touches the sidebar so the conversation surfaces with a fresh preview.
// Unauthenticated sessions skip all of it: history stays in the message
// buffer only.
//
// Persistence failures never roll back what the user already sees. They
// are logged and returned so the caller can record the divergence, but
// the conversation and messages remain visible as if saved.
package reconcile
