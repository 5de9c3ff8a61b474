// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"context"
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"
	"github.com/lumina-analytics/lumina-tui/internal/util"

	"go.uber.org/zap"
)

// PreviewLength bounds the sidebar preview taken from the user message.
const PreviewLength = 80

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Backend is the slice of the API client the reconciler needs.
type Backend interface {
	CreateConversation(ctx context.Context, firstMessage string) (*model.Conversation, error)
	SendMessage(ctx context.Context, conversationID, content string, role model.Role) (*api.SendReceipt, error)
	CreateArtifact(ctx context.Context, messageID, conversationID string, chart *model.ChartSpec) error
}

// Identity gates persistence on the session's authenticated flag.
type Identity interface {
	Authenticated() bool
}

// SidebarCache is the slice of the sidebar the reconciler updates.
type SidebarCache interface {
	ConfirmOptimistic(localID, serverID, title string) *model.Conversation
	UpsertFromActivity(conv *model.Conversation)
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler persists finished exchanges.
type Reconciler struct {
	backend  Backend
	identity Identity
	sidebar  SidebarCache
}

// NewReconciler wires a reconciler to its collaborators.
func NewReconciler(backend Backend, identity Identity, sidebar SidebarCache) *Reconciler {
	return &Reconciler{backend: backend, identity: identity, sidebar: sidebar}
}

// Finalize persists the exchange that produced userMsg and assistantMsg
// inside conv. When conv is still pending it is created on the backend
// first and adopts the server identity, so the local id never reaches a
// persistence call.
//
// RELIABILITY: nothing here rolls back. Failures are logged and the
// first one is returned; local state keeps rendering as if saved.
func (r *Reconciler) Finalize(ctx context.Context, conv *model.Conversation, userMsg, assistantMsg *model.Message) error {
	if !r.identity.Authenticated() {
		log.Debug("ephemeral session, skipping persistence",
			zap.String("conversation_id", conv.ID))
		return nil
	}

	if conv.Pending {
		created, err := r.backend.CreateConversation(ctx, userMsg.Content)
		if err != nil {
			// Without a server id no message can be persisted either.
			log.Error("conversation create failed, exchange not persisted",
				zap.String("local_id", conv.ID), zap.Error(err))
			return err
		}
		localID := conv.ID
		r.sidebar.ConfirmOptimistic(localID, created.ID, created.Title)
		if conv.Pending {
			// The controller's conversation may not be the cached one.
			conv.Confirm(created.ID, created.Title, created.UpdatedAt)
		}
		log.Info("conversation confirmed",
			zap.String("local_id", localID),
			zap.String("conversation_id", conv.ID))
	}

	var firstErr error

	if receipt, err := r.backend.SendMessage(ctx, conv.ID, userMsg.Content, model.RoleUser); err != nil {
		log.Error("user message persist failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		firstErr = err
	} else {
		userMsg.Confirm(receipt.MessageID)
	}

	if receipt, err := r.backend.SendMessage(ctx, conv.ID, assistantMsg.Content, model.RoleAssistant); err != nil {
		log.Error("assistant message persist failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	} else {
		assistantMsg.Confirm(receipt.MessageID)
		r.persistChart(ctx, conv.ID, assistantMsg)
	}

	r.sidebar.UpsertFromActivity(&model.Conversation{
		ID:          conv.ID,
		Title:       conv.Title,
		LastMessage: util.PreviewText(userMsg.Content, PreviewLength),
		UpdatedAt:   time.Now(),
	})

	return firstErr
}

// persistChart saves the assistant message's chart as a separate artifact
// record. Artifact failure is independent: the message itself is already
// saved and the chart still renders locally.
func (r *Reconciler) persistChart(ctx context.Context, conversationID string, assistantMsg *model.Message) {
	if assistantMsg.Chart == nil {
		return
	}
	if err := r.backend.CreateArtifact(ctx, assistantMsg.ID, conversationID, assistantMsg.Chart); err != nil {
		log.Warn("chart artifact persist failed",
			zap.String("message_id", assistantMsg.ID),
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}
