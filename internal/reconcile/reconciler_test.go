// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/model"
)

// =============================================================================
// TEST COLLABORATORS
// =============================================================================

type sentMessage struct {
	conversationID string
	content        string
	role           model.Role
}

type fakeBackend struct {
	created       int
	createdConv   *model.Conversation
	createErr     error
	sent          []sentMessage
	sendErr       map[model.Role]error
	artifacts     []string
	artifactCalls int
	artifactErr   error
	nextReceipt   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sendErr: make(map[model.Role]error)}
}

func (f *fakeBackend) CreateConversation(ctx context.Context, firstMessage string) (*model.Conversation, error) {
	f.created++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createdConv == nil {
		f.createdConv = &model.Conversation{ID: "srv-conv-1", Title: "Total sales", UpdatedAt: time.Now()}
	}
	return f.createdConv, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, conversationID, content string, role model.Role) (*api.SendReceipt, error) {
	if err := f.sendErr[role]; err != nil {
		return nil, err
	}
	f.sent = append(f.sent, sentMessage{conversationID, content, role})
	f.nextReceipt++
	return &api.SendReceipt{
		MessageID:      "srv-msg-" + string(rune('0'+f.nextReceipt)),
		ConversationID: conversationID,
	}, nil
}

func (f *fakeBackend) CreateArtifact(ctx context.Context, messageID, conversationID string, chart *model.ChartSpec) error {
	f.artifactCalls++
	if f.artifactErr != nil {
		return f.artifactErr
	}
	f.artifacts = append(f.artifacts, messageID)
	return nil
}

type fakeIdentity struct{ authed bool }

func (f fakeIdentity) Authenticated() bool { return f.authed }

type fakeSidebar struct {
	confirmed map[string]string
	upserts   []*model.Conversation
}

func newFakeSidebar() *fakeSidebar {
	return &fakeSidebar{confirmed: make(map[string]string)}
}

func (f *fakeSidebar) ConfirmOptimistic(localID, serverID, title string) *model.Conversation {
	f.confirmed[localID] = serverID
	return nil
}

func (f *fakeSidebar) UpsertFromActivity(conv *model.Conversation) {
	f.upserts = append(f.upserts, conv)
}

func exchange() (*model.Message, *model.Message) {
	user := model.NewUserMessage("Total sales last quarter?")
	assistant := model.NewAssistantPlaceholder()
	assistant.AppendToken("Revenue is $10k")
	assistant.FinalizeStream()
	return user, assistant
}

// chartExchange attaches the chart while the assistant message is still
// streaming, the way the stream fold does, since SetChart is a no-op on a
// finalized message.
func chartExchange() (*model.Message, *model.Message) {
	user := model.NewUserMessage("Total sales last quarter?")
	assistant := model.NewAssistantPlaceholder()
	assistant.AppendToken("Revenue is $10k")
	assistant.SetChart(&model.ChartSpec{Type: "bar"})
	assistant.FinalizeStream()
	return user, assistant
}

// =============================================================================
// PERSISTENCE FLOW
// =============================================================================

func TestFinalizeCreatesPendingConversationFirst(t *testing.T) {
	backend := newFakeBackend()
	sb := newFakeSidebar()
	rec := NewReconciler(backend, fakeIdentity{authed: true}, sb)

	conv := model.NewPendingConversation("Total sales last quarter?")
	localID := conv.ID
	user, assistant := exchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if backend.created != 1 {
		t.Errorf("conversation created %d times, want 1", backend.created)
	}
	if sb.confirmed[localID] != "srv-conv-1" {
		t.Error("sidebar should confirm the optimistic conversation")
	}
	if conv.ID != "srv-conv-1" || conv.Pending {
		t.Errorf("conversation not confirmed: id=%q pending=%v", conv.ID, conv.Pending)
	}
	for _, s := range backend.sent {
		if s.conversationID != "srv-conv-1" {
			t.Errorf("message persisted under %q, local id leaked", s.conversationID)
		}
	}
	if len(backend.sent) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(backend.sent))
	}
	if backend.sent[0].role != model.RoleUser || backend.sent[1].role != model.RoleAssistant {
		t.Error("user message must persist before the assistant message")
	}
	if user.Pending || assistant.Pending {
		t.Error("persisted messages should be confirmed")
	}
}

func TestFinalizeConfirmedConversationSkipsCreate(t *testing.T) {
	backend := newFakeBackend()
	rec := NewReconciler(backend, fakeIdentity{authed: true}, newFakeSidebar())

	conv := &model.Conversation{ID: "srv-conv-9", Title: "Churn"}
	user, assistant := exchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if backend.created != 0 {
		t.Error("confirmed conversation should not be re-created")
	}
}

func TestFinalizeUnauthenticatedSkipsBackend(t *testing.T) {
	backend := newFakeBackend()
	rec := NewReconciler(backend, fakeIdentity{authed: false}, newFakeSidebar())

	conv := model.NewPendingConversation("offline question")
	user, assistant := exchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if backend.created != 0 || len(backend.sent) != 0 {
		t.Error("ephemeral session must not touch the backend")
	}
	if !conv.Pending {
		t.Error("conversation should stay pending in ephemeral mode")
	}
}

func TestFinalizeUpdatesSidebarPreview(t *testing.T) {
	backend := newFakeBackend()
	sb := newFakeSidebar()
	rec := NewReconciler(backend, fakeIdentity{authed: true}, sb)

	conv := &model.Conversation{ID: "srv-conv-9"}
	user := model.NewUserMessage(strings.Repeat("long question ", 20))
	_, assistant := exchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(sb.upserts) != 1 {
		t.Fatalf("got %d sidebar upserts, want 1", len(sb.upserts))
	}
	preview := sb.upserts[0].LastMessage
	if len([]rune(preview)) > PreviewLength+3 {
		t.Errorf("preview not bounded: %d runes", len([]rune(preview)))
	}
	if sb.upserts[0].ID != "srv-conv-9" {
		t.Errorf("upsert for %q, want srv-conv-9", sb.upserts[0].ID)
	}
}

// =============================================================================
// CHART ARTIFACTS
// =============================================================================

func TestFinalizePersistsChartArtifact(t *testing.T) {
	backend := newFakeBackend()
	rec := NewReconciler(backend, fakeIdentity{authed: true}, newFakeSidebar())

	conv := &model.Conversation{ID: "srv-conv-9"}
	user, assistant := chartExchange()
	if assistant.Chart == nil {
		t.Fatal("chart must survive stream finalization")
	}

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(backend.artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(backend.artifacts))
	}
	if backend.artifacts[0] != assistant.ID {
		t.Error("artifact should reference the confirmed assistant message id")
	}
}

func TestFinalizeArtifactFailureIsIndependent(t *testing.T) {
	backend := newFakeBackend()
	backend.artifactErr = errors.New("artifact store down")
	rec := NewReconciler(backend, fakeIdentity{authed: true}, newFakeSidebar())

	conv := &model.Conversation{ID: "srv-conv-9"}
	user, assistant := chartExchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err != nil {
		t.Errorf("artifact failure should not fail the finalize: %v", err)
	}
	if backend.artifactCalls != 1 {
		t.Errorf("artifact persistence attempted %d times, want 1", backend.artifactCalls)
	}
	if len(backend.sent) != 2 {
		t.Errorf("got %d persisted messages, want 2; messages stay saved when the artifact fails", len(backend.sent))
	}
}

// =============================================================================
// FAILURE BEHAVIOR
// =============================================================================

func TestFinalizeCreateFailureStopsPersistence(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("backend down")
	rec := NewReconciler(backend, fakeIdentity{authed: true}, newFakeSidebar())

	conv := model.NewPendingConversation("q")
	user, assistant := exchange()

	if err := rec.Finalize(context.Background(), conv, user, assistant); err == nil {
		t.Fatal("Finalize() should surface the create failure")
	}
	if len(backend.sent) != 0 {
		t.Error("no message may persist without a server conversation id")
	}
	if !conv.Pending {
		t.Error("conversation stays pending when create fails")
	}
}

func TestFinalizeSendFailureNeverRollsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr[model.RoleUser] = errors.New("write failed")
	sb := newFakeSidebar()
	rec := NewReconciler(backend, fakeIdentity{authed: true}, sb)

	conv := &model.Conversation{ID: "srv-conv-9"}
	user, assistant := exchange()
	content := assistant.Content

	err := rec.Finalize(context.Background(), conv, user, assistant)
	if err == nil {
		t.Fatal("Finalize() should surface the persistence failure")
	}
	if assistant.Content != content {
		t.Error("local message content must survive a persistence failure")
	}
	if len(sb.upserts) != 1 {
		t.Error("sidebar touch still happens so the exchange stays visible")
	}
	// The assistant message still persisted despite the user failure.
	if len(backend.sent) != 1 || backend.sent[0].role != model.RoleAssistant {
		t.Errorf("assistant persist should still be attempted, sent=%v", backend.sent)
	}
}
