// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/buffer"
	"github.com/lumina-analytics/lumina-tui/internal/model"
	"github.com/lumina-analytics/lumina-tui/internal/reconcile"
	"github.com/lumina-analytics/lumina-tui/internal/sidebar"
	"github.com/lumina-analytics/lumina-tui/internal/stream"
	"github.com/lumina-analytics/lumina-tui/internal/telemetry"
)

// =============================================================================
// TEST COLLABORATORS
// =============================================================================

type fakeSession struct {
	mu     sync.Mutex
	authed bool
	hooks  []func()
}

func (f *fakeSession) Authenticated() bool { return f.authed }
func (f *fakeSession) SessionID() string   { return "sess-1" }
func (f *fakeSession) RecordActivity()     {}
func (f *fakeSession) OnLogout(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
}

func (f *fakeSession) logout() {
	f.mu.Lock()
	f.authed = false
	hooks := f.hooks
	f.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// fakeBackend backs the sidebar, buffer and reconciler in one place.
type fakeBackend struct {
	mu           sync.Mutex
	sidebarList  []*model.Conversation
	pages        map[string][]*model.Message
	created      int
	sent         []model.Role
	sentContents []string
	artifacts    int
	nextID       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{pages: make(map[string][]*model.Message)}
}

func (f *fakeBackend) Sidebar(ctx context.Context, limit int) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sidebarList, nil
}

func (f *fakeBackend) UpdateTitle(ctx context.Context, id, title string) error { return nil }

func (f *fakeBackend) DeleteConversation(ctx context.Context, id string) error { return nil }

func (f *fakeBackend) Messages(ctx context.Context, id string, page, pageSize int) (*api.MessagesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.MessagesPage{Messages: f.pages[id]}, nil
}

func (f *fakeBackend) CreateConversation(ctx context.Context, firstMessage string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &model.Conversation{ID: "srv-conv-1", Title: firstMessage, UpdatedAt: time.Now()}, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, id, content string, role model.Role) (*api.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, role)
	f.sentContents = append(f.sentContents, content)
	f.nextID++
	return &api.SendReceipt{MessageID: "srv-msg", ConversationID: id}, nil
}

func (f *fakeBackend) CreateArtifact(ctx context.Context, messageID, conversationID string, chart *model.ChartSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts++
	return nil
}

func (f *fakeBackend) persistCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created + len(f.sent) + f.artifacts
}

// scriptedSource replays events then ends.
type scriptedSource struct {
	events []api.Event
	final  error
	pos    int
}

func (s *scriptedSource) Next(ctx context.Context) (api.Event, error) {
	if s.pos >= len(s.events) {
		return api.Event{}, s.final
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedSource) Close() error { return nil }

// steppedSource yields events fed by the test.
type steppedSource struct{ steps chan api.Event }

func (s *steppedSource) Next(ctx context.Context) (api.Event, error) {
	ev, ok := <-s.steps
	if !ok {
		return api.Event{}, io.EOF
	}
	return ev, nil
}

func (s *steppedSource) Close() error { return nil }

func token(chunk string) api.Event { return api.Event{Type: api.EventToken, Chunk: chunk} }

func tokenQuerier(chunks ...string) Querier {
	return QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		src := &scriptedSource{final: io.EOF}
		for _, c := range chunks {
			src.events = append(src.events, token(c))
		}
		return src, nil
	})
}

type harness struct {
	session *fakeSession
	backend *fakeBackend
	sidebar *sidebar.Cache
	buffer  *buffer.Buffer
	ctrl    *Controller
}

func newHarness(authed bool, querier Querier, opts Options) *harness {
	sess := &fakeSession{authed: authed}
	backend := newFakeBackend()
	sb := sidebar.NewCache(backend, 50)
	buf := buffer.NewBuffer(backend, 30)
	rec := reconcile.NewReconciler(backend, sess, sb)
	if opts.SendRate == 0 {
		opts.SendRate = rate.Inf
	}
	return &harness{
		session: sess,
		backend: backend,
		sidebar: sb,
		buffer:  buf,
		ctrl:    NewController(sess, querier, sb, buf, rec, opts),
	}
}

// =============================================================================
// SEND SCENARIOS
// =============================================================================

func TestSendCreatesConversationAndStreamsAnswer(t *testing.T) {
	h := newHarness(true, tokenQuerier("Rev", "enue is $10k"), Options{})

	if err := h.ctrl.Send(context.Background(), "Total sales"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msgs := h.buffer.Messages()
	if len(msgs) != 2 {
		t.Fatalf("buffer holds %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "Total sales" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if got := msgs[1].Content; got != "Revenue is $10k" {
		t.Errorf("assistant content = %q, want %q", got, "Revenue is $10k")
	}
	if msgs[1].Streaming {
		t.Error("assistant message should be finalized")
	}

	if h.backend.created != 1 {
		t.Errorf("conversations created = %d, want 1", h.backend.created)
	}
	if len(h.backend.sent) != 2 {
		t.Errorf("messages persisted = %d, want 2", len(h.backend.sent))
	}

	active := h.ctrl.Active()
	if active == nil || active.ID != "srv-conv-1" || active.Pending {
		t.Errorf("active conversation not confirmed: %+v", active)
	}
	if h.buffer.ConversationID() != "srv-conv-1" {
		t.Errorf("buffer follows %q, want srv-conv-1", h.buffer.ConversationID())
	}

	items := h.sidebar.Items()
	if len(items) == 0 || items[0].ID != "srv-conv-1" {
		t.Fatalf("confirmed conversation should sit at sidebar index 0")
	}
	if !strings.Contains(items[0].LastMessage, "Total sales") {
		t.Errorf("sidebar preview %q should contain the user message", items[0].LastMessage)
	}
}

func TestSendUnauthenticatedStaysEphemeral(t *testing.T) {
	h := newHarness(false, tokenQuerier("answer"), Options{})

	if err := h.ctrl.Send(context.Background(), "offline question"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := h.backend.persistCalls(); got != 0 {
		t.Errorf("ephemeral session made %d persistence calls, want 0", got)
	}
	msgs := h.buffer.Messages()
	if len(msgs) != 2 || msgs[1].Content != "answer" {
		t.Errorf("buffer should reflect the full exchange, got %d messages", len(msgs))
	}
}

func TestSendErrorEventEndsWithMarker(t *testing.T) {
	querier := QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		return &scriptedSource{
			events: []api.Event{token("partial"), {Type: api.EventError, Content: "db down"}},
			final:  io.EOF,
		}, nil
	})
	h := newHarness(true, querier, Options{})

	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	last := h.buffer.Last()
	if !strings.HasSuffix(last.Content, "[Error: db down]") {
		t.Errorf("content %q should end with the error marker", last.Content)
	}
	if last.Streaming {
		t.Error("message must be finalized, not left pending")
	}
}

func TestSendBlankIsNoop(t *testing.T) {
	h := newHarness(true, tokenQuerier(), Options{})
	if err := h.ctrl.Send(context.Background(), "   \n "); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if h.buffer.Len() != 0 || h.ctrl.Active() != nil {
		t.Error("blank send must change nothing")
	}
}

func TestSendQueryOpenFailure(t *testing.T) {
	openErr := errors.New("connect refused")
	querier := QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		return nil, openErr
	})
	h := newHarness(false, querier, Options{})

	if err := h.ctrl.Send(context.Background(), "q"); !errors.Is(err, openErr) {
		t.Fatalf("Send() error = %v, want %v", err, openErr)
	}
	last := h.buffer.Last()
	if last == nil || last.Streaming {
		t.Fatal("assistant bubble must be finalized on open failure")
	}
	if last.Content != stream.FailureText {
		t.Errorf("failed bubble content = %q, want the fixed failure text", last.Content)
	}
}

func TestSendRateLimited(t *testing.T) {
	h := newHarness(false, tokenQuerier("x"), Options{SendRate: rate.Every(time.Hour), SendBurst: 1})

	if err := h.ctrl.Send(context.Background(), "first"); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if err := h.ctrl.Send(context.Background(), "second"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second Send() error = %v, want ErrRateLimited", err)
	}
}

func TestSendWhileStreamingActsAsStop(t *testing.T) {
	src := &steppedSource{steps: make(chan api.Event)}
	querier := QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		return src, nil
	})
	h := newHarness(false, querier, Options{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Send(context.Background(), "long question") }()

	src.steps <- token("keep")
	waitFor(t, func() bool { return h.ctrl.Streaming() })
	waitFor(t, func() bool {
		last := h.buffer.Last()
		return last != nil && last.DisplayContent() == "keep"
	})

	if err := h.ctrl.Send(context.Background(), "another question"); err != nil {
		t.Fatalf("send-as-stop error = %v", err)
	}
	src.steps <- token(" DISCARD")

	if err := waitErr(t, done); err != nil {
		t.Fatalf("original Send() error = %v", err)
	}
	last := h.buffer.Last()
	if last.Content != "keep" {
		t.Errorf("content = %q, want the pre-stop fold only", last.Content)
	}
	if h.buffer.Len() != 2 {
		t.Errorf("send-as-stop must not append a new exchange, have %d messages", h.buffer.Len())
	}
}

// =============================================================================
// NAVIGATION
// =============================================================================

func TestSelectConversationLoadsHistory(t *testing.T) {
	h := newHarness(true, tokenQuerier(), Options{})
	conv := &model.Conversation{ID: "c7", Title: "Churn", UpdatedAt: time.Now()}
	h.backend.sidebarList = []*model.Conversation{conv}
	h.backend.pages["c7"] = []*model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "old question"},
		{ID: "m2", Role: model.RoleAssistant, Content: "old answer"},
	}
	if err := h.ctrl.RefreshSidebar(context.Background()); err != nil {
		t.Fatalf("RefreshSidebar() error = %v", err)
	}

	if err := h.ctrl.SelectConversation(context.Background(), "c7"); err != nil {
		t.Fatalf("SelectConversation() error = %v", err)
	}
	if h.ctrl.ActiveID() != "c7" {
		t.Errorf("ActiveID() = %q, want c7", h.ctrl.ActiveID())
	}
	if h.buffer.Len() != 2 {
		t.Errorf("buffer holds %d messages, want 2", h.buffer.Len())
	}
}

func TestSelectActiveConversationIsNoop(t *testing.T) {
	h := newHarness(true, tokenQuerier(), Options{})
	conv := &model.Conversation{ID: "c7", UpdatedAt: time.Now()}
	h.backend.sidebarList = []*model.Conversation{conv}
	h.backend.pages["c7"] = []*model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "old question"},
		{ID: "m2", Role: model.RoleAssistant, Content: "old answer"},
	}
	h.ctrl.RefreshSidebar(context.Background())
	h.ctrl.SelectConversation(context.Background(), "c7")
	h.buffer.Append(&model.Message{ID: "local", Role: model.RoleUser, Content: "x"})

	if err := h.ctrl.SelectConversation(context.Background(), "c7"); err != nil {
		t.Fatalf("SelectConversation() error = %v", err)
	}
	// A redundant select must not reload and wipe local state.
	if h.buffer.Len() != 3 {
		t.Errorf("buffer reloaded on redundant select: %d messages", h.buffer.Len())
	}
}

func TestSelectUnknownConversation(t *testing.T) {
	h := newHarness(true, tokenQuerier(), Options{})
	if err := h.ctrl.SelectConversation(context.Background(), "ghost"); !errors.Is(err, ErrUnknownConversation) {
		t.Errorf("error = %v, want ErrUnknownConversation", err)
	}
}

func TestSwitchAbortsInFlightStream(t *testing.T) {
	src := &steppedSource{steps: make(chan api.Event)}
	querier := QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		return src, nil
	})
	h := newHarness(true, querier, Options{})
	other := &model.Conversation{ID: "c-other", UpdatedAt: time.Now()}
	h.backend.sidebarList = []*model.Conversation{other}
	h.ctrl.RefreshSidebar(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Send(context.Background(), "question") }()
	src.steps <- token("partial")
	waitFor(t, func() bool { return h.ctrl.Streaming() })

	if err := h.ctrl.SelectConversation(context.Background(), "c-other"); err != nil {
		t.Fatalf("SelectConversation() error = %v", err)
	}
	src.steps <- token(" LATE")

	if err := waitErr(t, done); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if h.ctrl.ActiveID() != "c-other" {
		t.Errorf("ActiveID() = %q, want c-other", h.ctrl.ActiveID())
	}
	for _, m := range h.buffer.Messages() {
		if strings.Contains(m.Content, "LATE") || strings.Contains(m.Content, "partial") {
			t.Errorf("stream leaked into the switched-to conversation: %q", m.Content)
		}
	}
}

func TestStartNewChatClearsActive(t *testing.T) {
	h := newHarness(true, tokenQuerier("a"), Options{})
	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	h.ctrl.StartNewChat()
	if h.ctrl.Active() != nil {
		t.Error("active conversation should be cleared")
	}
	if h.buffer.Len() != 0 || h.buffer.ConversationID() != "" {
		t.Error("buffer should be empty for a new chat")
	}
	if got := h.backend.persistCalls(); got != 3 {
		t.Errorf("new chat contacted the backend: %d calls, want the 3 from the send", got)
	}
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

func TestDeleteActiveConversationClearsState(t *testing.T) {
	h := newHarness(true, tokenQuerier("a"), Options{})
	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	id := h.ctrl.ActiveID()

	if err := h.ctrl.DeleteConversation(context.Background(), id); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if h.ctrl.Active() != nil || h.buffer.Len() != 0 {
		t.Error("deleting the active conversation should reset to new-chat state")
	}
	if h.sidebar.Get(id) != nil {
		t.Error("conversation should leave the sidebar")
	}
}

func TestDeleteInactiveConversationKeepsBuffer(t *testing.T) {
	h := newHarness(true, tokenQuerier("a"), Options{})
	other := &model.Conversation{ID: "c-other", UpdatedAt: time.Now()}
	h.backend.sidebarList = []*model.Conversation{other}
	h.ctrl.RefreshSidebar(context.Background())

	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := h.ctrl.DeleteConversation(context.Background(), "c-other"); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if h.ctrl.Active() == nil || h.buffer.Len() != 2 {
		t.Error("deleting another conversation must not touch the active one")
	}
}

func TestRenameBlankTitle(t *testing.T) {
	h := newHarness(true, tokenQuerier(), Options{})
	if err := h.ctrl.RenameConversation(context.Background(), "c1", "  "); !errors.Is(err, ErrBlankTitle) {
		t.Errorf("error = %v, want ErrBlankTitle", err)
	}
}

// =============================================================================
// LOGOUT
// =============================================================================

func TestLogoutTearsDownState(t *testing.T) {
	h := newHarness(true, tokenQuerier("a"), Options{})
	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	h.session.logout()

	if h.ctrl.Active() != nil {
		t.Error("active conversation should be cleared on logout")
	}
	if h.buffer.Len() != 0 || h.sidebar.Len() != 0 {
		t.Error("derived caches should be emptied on logout")
	}
}

// =============================================================================
// TELEMETRY
// =============================================================================

type captureRecorder struct {
	mu      sync.Mutex
	records []telemetry.SendRecord
}

func (c *captureRecorder) RecordSend(rec telemetry.SendRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func TestSendRecordsTelemetry(t *testing.T) {
	rec := &captureRecorder{}
	h := newHarness(true, tokenQuerier("to", "kens"), Options{Recorder: rec})

	if err := h.ctrl.Send(context.Background(), "q"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(rec.records) != 1 {
		t.Fatalf("got %d records, want 1", len(rec.records))
	}
	r := rec.records[0]
	if r.Outcome != "completed" || r.Tokens != 2 || !r.Persisted {
		t.Errorf("record = %+v", r)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func waitErr(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish")
		return nil
	}
}
