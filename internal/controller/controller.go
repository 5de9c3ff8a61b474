// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/buffer"
	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"
	"github.com/lumina-analytics/lumina-tui/internal/reconcile"
	"github.com/lumina-analytics/lumina-tui/internal/sidebar"
	"github.com/lumina-analytics/lumina-tui/internal/stream"
	"github.com/lumina-analytics/lumina-tui/internal/telemetry"

	"go.uber.org/zap"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRateLimited is returned by Send when the send limiter denies
	// another request.
	ErrRateLimited = errors.New("sending too fast, slow down")

	// ErrUnknownConversation is returned when an operation names a
	// conversation the sidebar does not hold.
	ErrUnknownConversation = errors.New("unknown conversation")

	// ErrBlankTitle is returned by RenameConversation for empty titles.
	ErrBlankTitle = errors.New("title cannot be blank")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Session is the slice of the session store the controller needs.
type Session interface {
	Authenticated() bool
	SessionID() string
	RecordActivity()
	OnLogout(fn func())
}

// Querier opens the answer stream for a query. *api.Client is adapted
// via QuerierFunc since its Query returns the concrete stream type.
type Querier interface {
	Query(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error)

func (f QuerierFunc) Query(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
	return f(ctx, query, history, sessionID)
}

// Recorder receives one record per finished exchange. Optional.
type Recorder interface {
	RecordSend(rec telemetry.SendRecord) error
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options tunes controller behavior. The zero value is usable.
type Options struct {
	// Recorder receives send telemetry. Nil disables recording.
	Recorder Recorder

	// Notify runs after every state change worth re-rendering,
	// including each folded stream event. Nil disables notification.
	Notify func()

	// SendRate and SendBurst configure the send limiter. Zero values
	// default to one send per second with a burst of three.
	SendRate  rate.Limit
	SendBurst int

	// HistoryTurns caps how many prior turns accompany a query.
	// Zero defaults to 20.
	HistoryTurns int
}

const defaultHistoryTurns = 20

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller orchestrates the session engine for one user session.
type Controller struct {
	mu sync.Mutex

	session    Session
	querier    Querier
	sidebar    *sidebar.Cache
	buffer     *buffer.Buffer
	ingestor   *stream.Ingestor
	reconciler *reconcile.Reconciler

	recorder     Recorder
	notify       func()
	limiter      *rate.Limiter
	historyTurns int

	active *model.Conversation
}

// NewController wires the engine together and registers its logout
// teardown on the session.
func NewController(sess Session, querier Querier, sb *sidebar.Cache, buf *buffer.Buffer, rec *reconcile.Reconciler, opts Options) *Controller {
	if opts.SendRate == 0 {
		opts.SendRate = rate.Every(time.Second)
	}
	if opts.SendBurst == 0 {
		opts.SendBurst = 3
	}
	if opts.HistoryTurns == 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}

	c := &Controller{
		session:      sess,
		querier:      querier,
		sidebar:      sb,
		buffer:       buf,
		ingestor:     stream.NewIngestor(),
		reconciler:   rec,
		recorder:     opts.Recorder,
		notify:       opts.Notify,
		limiter:      rate.NewLimiter(opts.SendRate, opts.SendBurst),
		historyTurns: opts.HistoryTurns,
	}

	sess.OnLogout(func() {
		c.ingestor.Stop()
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		c.buffer.Reset("")
		c.sidebar.Clear()
		c.notifyChanged()
	})

	return c
}

// Active returns the active conversation, nil in the new-chat state.
func (c *Controller) Active() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ActiveID returns the active conversation id, empty in new-chat state.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.ID
}

// Streaming reports whether an answer stream is in flight.
func (c *Controller) Streaming() bool {
	return c.ingestor.Active()
}

// SidebarItems returns the cached conversation list, newest first.
func (c *Controller) SidebarItems() []*model.Conversation {
	return c.sidebar.Items()
}

// Messages returns the active conversation's transcript, oldest first.
func (c *Controller) Messages() []*model.Message {
	return c.buffer.Messages()
}

// HasOlder reports whether more history can be paged in.
func (c *Controller) HasOlder() bool {
	return c.buffer.HasMore() && c.buffer.ConversationID() != ""
}

func (c *Controller) notifyChanged() {
	if c.notify != nil {
		c.notify()
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send submits a query and blocks until its stream reaches a terminal
// state and the exchange is reconciled. Blank input is a no-op. While a
// stream is active, Send is reinterpreted as Stop so one key both sends
// and stops.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.ingestor.Active() {
		c.ingestor.Stop()
		return nil
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	c.session.RecordActivity()

	c.mu.Lock()
	conv := c.active
	if conv == nil {
		// First send of a new chat: the conversation exists only
		// locally until the reconciler creates it server-side.
		conv = model.NewPendingConversation(text)
		c.active = conv
		c.sidebar.InsertOptimistic(conv)
		c.buffer.Reset(conv.ID)
	}
	c.mu.Unlock()

	// History is the transcript before this exchange.
	history := c.buffer.History(c.historyTurns)

	user := model.NewUserMessage(text)
	assistant := model.NewAssistantPlaceholder()
	c.buffer.Append(user)
	c.buffer.Append(assistant)
	c.notifyChanged()

	start := time.Now()
	src, err := c.querier.Query(ctx, text, history, c.session.SessionID())
	if err != nil {
		log.Error("query open failed", zap.Error(err))
		c.buffer.MutateLast(func(m *model.Message) { m.FailStream(stream.FailureText) })
		c.notifyChanged()
		c.record(conv.ID, text, &stream.Result{State: stream.StateFailed, Duration: time.Since(start)}, false)
		return err
	}

	res, runErr := c.ingestor.Run(ctx, src, c.scopedSink(conv))
	c.notifyChanged()
	if runErr != nil {
		log.Warn("stream ended in failure", zap.Error(runErr))
	}

	// The transcript the user sees is authoritative for every terminal
	// state, so reconciliation runs even after a failure.
	persistErr := c.reconciler.Finalize(ctx, conv, user, assistant)

	c.mu.Lock()
	stillActive := c.active == conv
	c.mu.Unlock()
	if stillActive && c.buffer.ConversationID() != conv.ID {
		c.buffer.AdoptConversationID(conv.ID)
	}
	c.notifyChanged()

	c.record(conv.ID, text, res, persistErr == nil && c.session.Authenticated())

	if runErr != nil {
		return runErr
	}
	return persistErr
}

// Stop aborts the in-flight stream. No-op without one.
func (c *Controller) Stop() bool {
	return c.ingestor.Stop()
}

// scopedSink folds stream events into the buffer only while it still
// belongs to conv; after a conversation switch, late events are dropped
// instead of landing in the wrong transcript.
func (c *Controller) scopedSink(conv *model.Conversation) stream.Sink {
	return sinkFunc(func(fn func(*model.Message)) {
		if c.buffer.ConversationID() != conv.ID {
			return
		}
		c.buffer.MutateLast(fn)
		c.notifyChanged()
	})
}

type sinkFunc func(fn func(*model.Message))

func (f sinkFunc) MutateLast(fn func(*model.Message)) { f(fn) }

func (c *Controller) record(conversationID, query string, res *stream.Result, persisted bool) {
	if c.recorder == nil || res == nil {
		return
	}
	err := c.recorder.RecordSend(telemetry.SendRecord{
		ConversationID: conversationID,
		QueryChars:     len([]rune(query)),
		Tokens:         res.Tokens,
		FirstToken:     res.FirstToken,
		Duration:       res.Duration,
		Outcome:        string(res.State),
		Persisted:      persisted,
	})
	if err != nil {
		log.Debug("telemetry record failed", zap.Error(err))
	}
}

// =============================================================================
// NAVIGATION
// =============================================================================

// SelectConversation makes id the active conversation and loads its
// first page of history. Selecting the already-active conversation is a
// no-op. Any in-flight stream is aborted first.
func (c *Controller) SelectConversation(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.active != nil && c.active.ID == id {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conv := c.sidebar.Get(id)
	if conv == nil {
		return ErrUnknownConversation
	}

	c.ingestor.Stop()
	c.session.RecordActivity()

	c.mu.Lock()
	c.active = conv
	c.mu.Unlock()
	c.buffer.Reset(id)

	var err error
	if c.session.Authenticated() && !conv.Pending {
		err = c.buffer.LoadPage(ctx)
	}
	c.notifyChanged()
	return err
}

// StartNewChat clears the active conversation without contacting the
// backend. The next Send lazily creates a conversation.
func (c *Controller) StartNewChat() {
	c.ingestor.Stop()
	c.session.RecordActivity()

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	c.buffer.Reset("")
	c.notifyChanged()
}

// LoadOlder fetches the next page of history for the active
// conversation, prepended above what is shown.
func (c *Controller) LoadOlder(ctx context.Context) error {
	err := c.buffer.LoadPage(ctx)
	c.notifyChanged()
	return err
}

// RefreshSidebar reloads the conversation list. Ephemeral sessions have
// no server-side list and skip the fetch.
func (c *Controller) RefreshSidebar(ctx context.Context) error {
	if !c.session.Authenticated() {
		return nil
	}
	err := c.sidebar.Load(ctx)
	c.notifyChanged()
	return err
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// DeleteConversation removes a conversation. Deleting the active one
// aborts any stream and returns the UI to the new-chat state.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	c.mu.Lock()
	wasActive := c.active != nil && c.active.ID == id
	c.mu.Unlock()

	if wasActive {
		c.ingestor.Stop()
	}
	if err := c.sidebar.Remove(ctx, id); err != nil {
		return err
	}
	if wasActive {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		c.buffer.Reset("")
	}
	c.notifyChanged()
	return nil
}

// RenameConversation sets a new title, backend first.
func (c *Controller) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrBlankTitle
	}
	if err := c.sidebar.Rename(ctx, id, title); err != nil {
		return err
	}
	c.notifyChanged()
	return nil
}
