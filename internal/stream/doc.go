// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream folds a live answer stream into the in-flight assistant
// message.
//
// The ingestor is a small state machine: it starts idle, enters streaming
// when a run begins, and ends in exactly one of completed (clean end of
// data), aborted (user stop, partial content kept) or failed (transport
// error, content replaced by a fixed apology). Every started assistant
// message is finalized; the chat never shows a stuck or empty bubble.
//
// The event source is injectable so the fold is testable without a
// network: any type yielding parsed events works, including
// api.EventStream.
//
// # Key Types
//
//   - Ingestor: the fold state machine with its cancellation handle
//   - Source: an ordered sequence of parsed stream events
//   - Result: terminal state plus timing and token counts
//
// # Usage
//
//	ing := stream.NewIngestor()
//	res, err := ing.Run(ctx, src, buf)
//	// elsewhere, on user stop:
//	ing.Stop()
package stream
