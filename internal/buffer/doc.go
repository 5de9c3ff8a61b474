// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package buffer holds the message history of the active conversation.
//
// The buffer is what the chat view renders: confirmed history fetched in
// pages plus any optimistic and streaming messages appended locally.
// Pagination walks backwards through history: page one replaces the
// buffer with the newest messages, later pages prepend older ones.
// Concurrent loads for the same conversation are collapsed so a scroll
// burst issues one fetch.
//
// # Key Types
//
//   - Buffer: the active conversation's message list
//   - Backend: the slice of the API client the buffer needs
//
// # Usage
//
//	buf := buffer.NewBuffer(client, model.DefaultPageSize)
//	buf.Reset("conv-1")
//	if err := buf.LoadPage(ctx); err != nil { ... }
//	buf.Append(model.NewUserMessage("hello"))
package buffer
