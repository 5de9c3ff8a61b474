// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/util"
)

// TitleSeedLength is the maximum number of runes taken from the first user
// message when seeding a conversation title.
const TitleSeedLength = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a sidebar entry: identity, title and recent-activity
// metadata. Identity is assigned by the backend; the only client-constructed
// conversations are optimistic placeholders whose local id is replaced by
// the server id on confirmation.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Pending marks an optimistic placeholder awaiting server confirmation.
	Pending bool `json:"-"`
}

// NewPendingConversation creates an optimistic placeholder shown in the
// sidebar before the backend confirms creation. The title is seeded from
// the first user message.
func NewPendingConversation(firstMessage string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        newLocalID("conv"),
		Title:     util.PreviewText(firstMessage, TitleSeedLength),
		CreatedAt: now,
		UpdatedAt: now,
		Pending:   true,
	}
}

// Confirm adopts the server-assigned identity. Conversion happens exactly
// once; later calls are no-ops.
func (c *Conversation) Confirm(serverID, title string, updatedAt time.Time) {
	if !c.Pending {
		return
	}
	c.ID = serverID
	if title != "" {
		c.Title = title
	}
	if !updatedAt.IsZero() {
		c.UpdatedAt = updatedAt
	}
	c.Pending = false
}

// Touch records activity: the preview of the latest user message and a new
// activity timestamp. The sidebar re-sorts after any touch.
func (c *Conversation) Touch(preview string, ts time.Time) {
	c.LastMessage = preview
	c.UpdatedAt = ts
}

// DisplayTitle returns the title or a default for a brand-new conversation.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New conversation"
}
