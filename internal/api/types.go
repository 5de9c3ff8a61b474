// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/model"
)

// =============================================================================
// WIRE TYPES (requests)
// =============================================================================

type createConversationRequest struct {
	Title        string `json:"title,omitempty"`
	FirstMessage string `json:"first_message,omitempty"`
}

type updateTitleRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	Role           string `json:"role"`
}

type createArtifactRequest struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Type           string          `json:"type"`
	ChartType      string          `json:"chart_type,omitempty"`
	DataSnapshot   json.RawMessage `json:"data_snapshot,omitempty"`
}

type queryRequest struct {
	Query     string `json:"query"`
	History   []Turn `json:"history"`
	SessionID string `json:"session_id,omitempty"`
}

// Turn is one prior exchange entry sent as query history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// WIRE TYPES (responses)
// =============================================================================

type conversationResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type sidebarResponse struct {
	Conversations []conversationResponse `json:"conversations"`
	Total         int                    `json:"total"`
}

type artifactResponse struct {
	MessageID    string          `json:"message_id"`
	Type         string          `json:"type"`
	ChartType    string          `json:"chart_type"`
	DataSnapshot json.RawMessage `json:"data_snapshot"`
}

type messageResponse struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id"`
	Role           string             `json:"role"`
	Content        string             `json:"content"`
	CreatedAt      time.Time          `json:"created_at"`
	Artifacts      []artifactResponse `json:"artifacts"`
}

type messagesPageResponse struct {
	Messages []messageResponse `json:"messages"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	HasMore  bool              `json:"has_more"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// =============================================================================
// EXPORTED RESULT TYPES
// =============================================================================

// SendReceipt is the backend's acknowledgment of a persisted message, used
// to reconcile optimistic local state with server-assigned identifiers.
type SendReceipt struct {
	MessageID          string `json:"message_id"`
	ConversationID     string `json:"conversation_id"`
	LastMessagePreview string `json:"last_message_preview"`
	IsNewConversation  bool   `json:"is_new_conversation"`
	ConversationTitle  string `json:"conversation_title"`
}

// MessagesPage is one page of conversation history, oldest-to-newest.
// Page is the page number the server echoed back, zero when absent.
type MessagesPage struct {
	Messages []*model.Message
	Total    int
	Page     int
	HasMore  bool
}

// =============================================================================
// WIRE → DOMAIN CONVERSION
// =============================================================================

func (c conversationResponse) toModel() *model.Conversation {
	return &model.Conversation{
		ID:          c.ID,
		Title:       c.Title,
		LastMessage: c.LastMessage,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (m messageResponse) toModel() *model.Message {
	// At most one chart is attached per assistant message; the first chart
	// artifact wins, matching how the backend stores stream output.
	var chart *model.ChartSpec
	for _, a := range m.Artifacts {
		if a.Type == "chart" {
			chart = &model.ChartSpec{Type: a.ChartType, Data: a.DataSnapshot}
			break
		}
	}
	return model.NewConfirmedMessage(m.ID, model.Role(m.Role), m.Content, chart, m.CreatedAt)
}
