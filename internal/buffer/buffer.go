// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package buffer

import (
	"context"
	"sync"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"

	"go.uber.org/zap"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the slice of the API client the buffer needs.
type Backend interface {
	Messages(ctx context.Context, conversationID string, page, pageSize int) (*api.MessagesPage, error)
}

// =============================================================================
// BUFFER
// =============================================================================

// Buffer holds the message list of the active conversation. Safe for
// concurrent use.
type Buffer struct {
	mu       sync.Mutex
	backend  Backend
	pageSize int

	conversationID string
	messages       []*model.Message
	cursor         model.PageCursor
	loading        bool
}

// NewBuffer creates an empty buffer. pageSize caps how many messages one
// LoadPage fetches; zero or negative uses model.DefaultPageSize.
func NewBuffer(backend Backend, pageSize int) *Buffer {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	return &Buffer{
		backend:  backend,
		pageSize: pageSize,
		cursor:   model.NewPageCursor(pageSize),
	}
}

// Reset switches the buffer to a new conversation: messages are cleared
// and pagination starts over. An empty id means a fresh unsaved chat.
// Any load still in flight for the previous conversation is discarded
// when it lands.
func (b *Buffer) Reset(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversationID = conversationID
	b.messages = nil
	b.cursor = model.NewPageCursor(b.pageSize)
	b.loading = false
}

// AdoptConversationID rebinds the buffer to a new id without clearing
// messages. Used when a pending conversation is confirmed and the buffer
// should follow it to its server identity.
func (b *Buffer) AdoptConversationID(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversationID = conversationID
}

// ConversationID returns the id of the conversation the buffer holds.
// Empty for a fresh unsaved chat.
func (b *Buffer) ConversationID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversationID
}

// Messages returns a snapshot of the current list, oldest first.
func (b *Buffer) Messages() []*model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// HasMore reports whether older history remains to be fetched. Unknown
// counts as true so the first load is always attempted.
func (b *Buffer) HasMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.cursor.HasMoreKnown || b.cursor.HasMore
}

// =============================================================================
// PAGINATION
// =============================================================================

// LoadPage fetches the next page of history. The first page replaces the
// buffer, later pages prepend older messages above what is shown.
//
// PERFORMANCE: concurrent calls for the same conversation are collapsed
// into the in-flight fetch; a scroll burst costs one request. Returns
// nil when there is nothing to do (unsaved chat, exhausted history, or a
// load already running).
func (b *Buffer) LoadPage(ctx context.Context) error {
	b.mu.Lock()
	if b.conversationID == "" || model.IsLocalID(b.conversationID) {
		b.mu.Unlock()
		return nil
	}
	page := b.cursor.NextPage()
	if page == 0 || b.loading {
		b.mu.Unlock()
		return nil
	}
	b.loading = true
	id := b.conversationID
	b.mu.Unlock()

	fetched, err := b.backend.Messages(ctx, id, page, b.pageSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	// A Reset may have switched conversations while the fetch was in
	// flight; its result belongs to a list the user no longer sees.
	if b.conversationID != id {
		log.Debug("discarding stale page load",
			zap.String("conversation_id", id),
			zap.Int("page", page))
		return nil
	}
	b.loading = false
	if err != nil {
		return err
	}

	// The server echoes the page number it served; a mismatch means the
	// request and response got out of step.
	if fetched.Page != 0 && fetched.Page != page {
		log.Warn("server returned a different page than requested",
			zap.String("conversation_id", id),
			zap.Int("requested", page),
			zap.Int("served", fetched.Page))
	}

	if page == 1 {
		b.messages = fetched.Messages
	} else {
		b.messages = append(fetched.Messages, b.messages...)
	}
	b.cursor.Record(page, fetched.HasMore)
	return nil
}

// =============================================================================
// LOCAL MUTATIONS
// =============================================================================

// Append adds a message to the end of the buffer.
func (b *Buffer) Append(msg *model.Message) {
	if msg == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

// Last returns the newest message, or nil when the buffer is empty.
func (b *Buffer) Last() *model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return nil
	}
	return b.messages[len(b.messages)-1]
}

// MutateLast runs fn on the newest message under the buffer lock. No-op
// on an empty buffer. Stream folding lands tokens through here so reads
// never observe a half-applied append.
func (b *Buffer) MutateLast(fn func(*model.Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return
	}
	fn(b.messages[len(b.messages)-1])
}

// History returns up to max role/content turns for query context, oldest
// first, skipping streaming placeholders. max <= 0 returns all.
func (b *Buffer) History(max int) []api.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()

	turns := make([]api.Turn, 0, len(b.messages))
	for _, msg := range b.messages {
		if msg.Streaming {
			continue
		}
		turns = append(turns, api.Turn{Role: string(msg.Role), Content: msg.Content})
	}
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	return turns
}
