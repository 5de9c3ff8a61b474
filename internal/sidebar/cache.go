// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package sidebar

import (
	"context"
	"sort"
	"sync"

	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"

	"go.uber.org/zap"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the slice of the API client the sidebar needs.
type Backend interface {
	Sidebar(ctx context.Context, limit int) ([]*model.Conversation, error)
	UpdateTitle(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// =============================================================================
// CACHE
// =============================================================================

// Cache holds the sidebar's conversation list, newest activity first.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	limit   int
	items   []*model.Conversation
	loaded  bool
}

// NewCache creates an empty cache backed by the given client. limit caps
// how many conversations a Load fetches; zero or negative uses the
// backend default.
func NewCache(backend Backend, limit int) *Cache {
	return &Cache{backend: backend, limit: limit}
}

// Items returns a snapshot of the current list, newest activity first.
func (c *Cache) Items() []*model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Conversation, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached conversations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loaded reports whether at least one Load has succeeded.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Get returns the cached conversation with the given id, or nil.
func (c *Cache) Get(id string) *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(id)
}

// find must be called with c.mu held.
func (c *Cache) find(id string) *model.Conversation {
	for _, conv := range c.items {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// Clear drops all cached items. Used on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.loaded = false
}

// =============================================================================
// LOADING
// =============================================================================

// Load fetches the sidebar list from the backend and replaces the cache.
//
// RELIABILITY: Load is fail-soft. On error the current items stay in
// place and the error is returned so the caller can surface it; a stale
// sidebar beats an empty one.
func (c *Cache) Load(ctx context.Context) error {
	fetched, err := c.backend.Sidebar(ctx, c.limit)
	if err != nil {
		log.Warn("sidebar load failed, keeping cached items", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Pending conversations exist only locally; a server snapshot must
	// not drop them while their first send is in flight.
	var pending []*model.Conversation
	for _, conv := range c.items {
		if conv.Pending {
			pending = append(pending, conv)
		}
	}
	c.items = append(pending, fetched...)
	c.sortLocked()
	c.loaded = true
	return nil
}

// =============================================================================
// ACTIVITY
// =============================================================================

// UpsertFromActivity records fresh activity on a conversation: the preview
// and timestamp are updated and the list is re-sorted so the conversation
// surfaces at the top. Unknown ids are a no-op; a conversation enters the
// cache through Load or InsertOptimistic only.
func (c *Cache) UpsertFromActivity(conv *model.Conversation) {
	if conv == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.find(conv.ID)
	if existing == nil {
		log.Debug("activity for conversation not in sidebar", zap.String("conversation_id", conv.ID))
		return
	}
	existing.Touch(conv.LastMessage, conv.UpdatedAt)
	if conv.Title != "" {
		existing.Title = conv.Title
	}
	c.sortLocked()
}

// sortLocked orders items newest activity first. Must be called with
// c.mu held. Stable so equal timestamps keep their relative order.
func (c *Cache) sortLocked() {
	sort.SliceStable(c.items, func(i, j int) bool {
		return c.items[i].UpdatedAt.After(c.items[j].UpdatedAt)
	})
}

// =============================================================================
// OPTIMISTIC INSERTION
// =============================================================================

// InsertOptimistic prepends a pending conversation created locally for a
// first send. It surfaces immediately with its seeded title.
func (c *Cache) InsertOptimistic(conv *model.Conversation) {
	if conv == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]*model.Conversation{conv}, c.items...)
}

// ConfirmOptimistic converts the pending conversation with localID into a
// confirmed one carrying the server-assigned identity. Returns the
// confirmed conversation, or nil if localID is not cached.
func (c *Cache) ConfirmOptimistic(localID, serverID, title string) *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.find(localID)
	if conv == nil {
		log.Warn("confirm for unknown local conversation", zap.String("local_id", localID))
		return nil
	}
	conv.Confirm(serverID, title, conv.UpdatedAt)
	return conv
}

// =============================================================================
// BACKEND-FIRST MUTATIONS
// =============================================================================

// Rename updates a conversation's title, backend first. The cache only
// changes after the server accepted the new title. Renaming a pending
// conversation updates the local title without a backend call.
func (c *Cache) Rename(ctx context.Context, id, title string) error {
	c.mu.Lock()
	conv := c.find(id)
	isPending := conv != nil && conv.Pending
	c.mu.Unlock()

	if !isPending {
		if err := c.backend.UpdateTitle(ctx, id, title); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if conv := c.find(id); conv != nil {
		conv.Title = title
	}
	return nil
}

// Remove deletes a conversation, backend first. Pending conversations are
// removed locally without a backend call since the server never saw them.
func (c *Cache) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	conv := c.find(id)
	isPending := conv != nil && conv.Pending
	c.mu.Unlock()

	if !isPending {
		if err := c.backend.DeleteConversation(ctx, id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, conv := range c.items {
		if conv.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return nil
}
