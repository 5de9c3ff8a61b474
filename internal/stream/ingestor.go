// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"

	"go.uber.org/zap"
)

// =============================================================================
// STATES
// =============================================================================

// State is the ingestor's lifecycle position. Streaming is the only
// non-terminal state after a run begins.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateAborted, StateFailed:
		return true
	}
	return false
}

// ErrActive is returned by Run when a stream is already in flight. One
// ingestor folds at most one stream at a time.
var ErrActive = errors.New("a stream is already active")

// FailureText is the fixed content a failed assistant message is sealed
// with. Every started message ends with content, a partial fragment, or
// this string; the user never sees a stuck empty bubble.
const FailureText = "Sorry, something went wrong while generating this answer. Please try again."

// =============================================================================
// SOURCE AND SINK
// =============================================================================

// Source is an ordered sequence of parsed stream events. Next returns
// io.EOF on clean end of data. *api.EventStream satisfies Source.
type Source interface {
	Next(ctx context.Context) (api.Event, error)
	Close() error
}

// Sink is where folded events land. *buffer.Buffer satisfies Sink; the
// fold only ever touches the tail message.
type Sink interface {
	MutateLast(fn func(*model.Message))
}

// =============================================================================
// RESULT
// =============================================================================

// Result describes how a run ended.
type Result struct {
	State State

	// Tokens is the number of token events applied.
	Tokens int

	// FirstToken is the delay from run start to the first token, zero
	// when no token arrived.
	FirstToken time.Duration

	// Duration is the total run time.
	Duration time.Duration

	// HadChart is true when a chart payload was attached.
	HadChart bool

	// HadError is true when the backend emitted an in-band error event.
	HadError bool

	// Err is the transport error that failed the run, nil otherwise.
	Err error
}

// =============================================================================
// INGESTOR
// =============================================================================

// Ingestor folds one stream at a time into the sink's tail message.
// State and Stop are safe to call from other goroutines while Run is in
// flight.
type Ingestor struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// NewIngestor creates an idle ingestor.
func NewIngestor() *Ingestor {
	return &Ingestor{state: StateIdle}
}

// State returns the current lifecycle position.
func (ing *Ingestor) State() State {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.state
}

// Active reports whether a run is in flight.
func (ing *Ingestor) Active() bool {
	return ing.State() == StateStreaming
}

// Stop cancels the in-flight run, transitioning it to aborted. Content
// folded so far is kept. Returns false when no run is active.
func (ing *Ingestor) Stop() bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if ing.state != StateStreaming || ing.cancel == nil {
		return false
	}
	ing.cancel()
	return true
}

// =============================================================================
// RUN
// =============================================================================

// Run consumes src until a terminal state, applying each event to the
// sink's tail message in arrival order. It blocks until the stream ends
// and always finalizes the tail message: with its content on completion,
// the partial fold on abort, or a fixed apology on failure. The source
// is closed before Run returns.
func (ing *Ingestor) Run(ctx context.Context, src Source, sink Sink) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ing.mu.Lock()
	if ing.state == StateStreaming {
		ing.mu.Unlock()
		return nil, ErrActive
	}
	ing.state = StateStreaming
	ing.cancel = cancel
	ing.mu.Unlock()

	start := time.Now()
	res := &Result{}

	final := ing.consume(ctx, src, sink, start, res)

	if err := src.Close(); err != nil {
		log.Debug("stream close failed", zap.Error(err))
	}

	ing.mu.Lock()
	ing.state = final
	ing.cancel = nil
	ing.mu.Unlock()

	res.State = final
	res.Duration = time.Since(start)
	if final == StateFailed {
		return res, res.Err
	}
	return res, nil
}

// consume runs the fold loop and returns the terminal state.
func (ing *Ingestor) consume(ctx context.Context, src Source, sink Sink, start time.Time, res *Result) State {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				if ctx.Err() != nil {
					// Cancel raced clean end of data; the user asked
					// for a stop and gets one.
					return ing.abort(sink)
				}
				sink.MutateLast(func(m *model.Message) { m.FinalizeStream() })
				return StateCompleted
			case api.IsCancelled(err):
				return ing.abort(sink)
			default:
				log.Error("stream transport failure", zap.Error(err))
				res.Err = err
				sink.MutateLast(func(m *model.Message) { m.FailStream(FailureText) })
				return StateFailed
			}
		}

		// Events decoded after a stop are discarded, not applied.
		if ctx.Err() != nil {
			return ing.abort(sink)
		}

		switch ev.Type {
		case api.EventToken:
			if res.Tokens == 0 {
				res.FirstToken = time.Since(start)
			}
			res.Tokens++
			sink.MutateLast(func(m *model.Message) { m.AppendToken(ev.Chunk) })
		case api.EventChart:
			res.HadChart = true
			sink.MutateLast(func(m *model.Message) { m.SetChart(ev.Chart) })
		case api.EventError:
			res.HadError = true
			sink.MutateLast(func(m *model.Message) { m.AppendErrorMarker(ev.Content) })
		}
	}
}

func (ing *Ingestor) abort(sink Sink) State {
	sink.MutateLast(func(m *model.Message) { m.FinalizeStream() })
	return StateAborted
}
