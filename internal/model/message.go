// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Lumina"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// An assistant message starts as a streaming placeholder: its content is
// appended to in place while tokens arrive, and it becomes immutable once
// the stream that produced it is finalized. All other messages are
// append-only within a conversation.
type Message struct {
	// Identity. Pending messages carry a synthetic local id until the
	// backend acknowledges them.
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"-"`

	// Content
	Content string     `json:"content"`
	Chart   *ChartSpec `json:"chart,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations while
	// folding tokens into the in-flight message.
	Streaming bool            `json:"-"`
	streamBuf strings.Builder `json:"-"`
}

// NewUserMessage creates a pending user message with a local id.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        newLocalID("msg"),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	}
}

// NewAssistantPlaceholder creates the streaming assistant message that a
// token stream folds into. Content starts empty and chart is nil.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:        newLocalID("msg"),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		Pending:   true,
		Streaming: true,
	}
}

// NewConfirmedMessage builds a message from server-confirmed data, used
// when loading history pages.
func NewConfirmedMessage(id string, role Role, content string, chart *ChartSpec, createdAt time.Time) *Message {
	return &Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Chart:     chart,
		CreatedAt: createdAt,
	}
}

// =============================================================================
// STREAM MUTATION
// =============================================================================

// AppendToken appends a token chunk to a streaming message.
// No-op once the message has been finalized.
func (m *Message) AppendToken(token string) {
	if m.Streaming {
		m.streamBuf.WriteString(token)
	}
}

// AppendErrorMarker appends a formatted error marker to a streaming
// message. An error event does not terminate the stream by itself.
func (m *Message) AppendErrorMarker(content string) {
	if !m.Streaming {
		return
	}
	if m.streamBuf.Len() > 0 {
		m.streamBuf.WriteString("\n")
	}
	m.streamBuf.WriteString("[Error: " + content + "]")
}

// SetChart attaches a chart payload to a streaming message, replacing any
// previous one.
func (m *Message) SetChart(chart *ChartSpec) {
	if m.Streaming {
		m.Chart = chart
	}
}

// FinalizeStream seals the message with whatever content accumulated.
// After this the message can never be reopened for streaming.
func (m *Message) FinalizeStream() {
	if !m.Streaming {
		return
	}
	m.Content = m.streamBuf.String()
	m.streamBuf.Reset()
	m.Streaming = false
}

// FailStream replaces the accumulated content with a fixed failure string
// and seals the message. Used when the transport dies mid-stream so the
// user never sees a stuck empty bubble.
func (m *Message) FailStream(failureText string) {
	if !m.Streaming {
		return
	}
	m.streamBuf.Reset()
	m.Content = failureText
	m.Streaming = false
}

// =============================================================================
// ACCESSORS
// =============================================================================

// DisplayContent returns the content to render (streamed or final).
func (m *Message) DisplayContent() string {
	if m.Streaming {
		return m.streamBuf.String()
	}
	return m.Content
}

// IsEmpty returns true if the message has no content yet.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamBuf.Len() == 0
}

// Confirm adopts the server-assigned id. Conversion happens exactly once;
// later calls are no-ops.
func (m *Message) Confirm(serverID string) {
	if !m.Pending {
		return
	}
	m.ID = serverID
	m.Pending = false
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newLocalID creates a synthetic id for an optimistic entity. The prefix
// makes a leaked pending id easy to spot in logs and backend traces.
func newLocalID(kind string) string {
	return "local-" + kind + "-" + uuid.NewString()
}

// IsLocalID reports whether id was generated locally and must not be sent
// to the backend.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, "local-")
}
