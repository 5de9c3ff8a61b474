// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/model"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventType identifies a parsed stream event.
type EventType string

const (
	EventToken EventType = "token"
	EventChart EventType = "chart"
	EventError EventType = "error"
)

// Event is one parsed line of the /query stream.
type Event struct {
	Type EventType

	// Chunk is the token text (EventToken).
	Chunk string

	// Content is the error text (EventError).
	Content string

	// Chart is the chart payload (EventChart).
	Chart *model.ChartSpec
}

// rawEvent covers every line shape the backend emits. The chart payload
// arrives either as a bare chart event or embedded in a leading meta event.
type rawEvent struct {
	Type    string           `json:"type"`
	Chunk   string           `json:"chunk"`
	Content string           `json:"content"`
	Chart   *model.ChartSpec `json:"chart"`
	Data    json.RawMessage  `json:"data"`
}

// =============================================================================
// EVENT STREAM
// =============================================================================

// EventStream reads newline-delimited JSON events from a /query response.
// A trailing partial line is buffered by the reader until the next chunk
// completes it; a final unterminated line at EOF is still parsed.
//
// Malformed lines are skipped and logged, never fatal: one bad line must
// not abort the stream.
type EventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// NewEventStream wraps a response body (or any reader in tests).
func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next parsed event. It returns io.EOF when the backend
// signals end-of-data and a cancellation error when ctx is done. Events
// the fold does not consume (unknown types, empty meta) are skipped
// internally.
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, transportError("stream read cancelled", ctx.Err())
		default:
		}

		if s.done {
			return Event{}, io.EOF
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return Event{}, transportError("stream read failed", err)
			}
			// EOF: process the final unterminated line, if any.
			s.done = true
			if len(strings.TrimSpace(string(line))) == 0 {
				return Event{}, io.EOF
			}
		}

		ev, ok := s.parseLine(line)
		if !ok {
			continue
		}
		return ev, nil
	}
}

// parseLine maps one wire line to an Event. Returns ok=false for lines
// the fold should skip.
func (s *EventStream) parseLine(line []byte) (Event, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Event{}, false
	}

	var raw rawEvent
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		// ParseError is swallowed at the line level.
		log.Warn("skipping malformed stream line",
			zap.String("line", truncateForLog(trimmed)),
			zap.Error(err))
		return Event{}, false
	}

	switch raw.Type {
	case "token":
		return Event{Type: EventToken, Chunk: raw.Chunk}, true

	case "chart":
		if raw.Chart != nil {
			return Event{Type: EventChart, Chart: raw.Chart}, true
		}
		if len(raw.Data) > 0 {
			return Event{Type: EventChart, Chart: &model.ChartSpec{Data: raw.Data}}, true
		}
		return Event{}, false

	case "meta":
		// The backend front-loads chart metadata in a meta event; only a
		// non-null chart is interesting to the fold.
		if raw.Chart != nil {
			return Event{Type: EventChart, Chart: raw.Chart}, true
		}
		return Event{}, false

	case "error":
		return Event{Type: EventError, Content: raw.Content}, true

	default:
		log.Debug("skipping unknown stream event", zap.String("type", raw.Type))
		return Event{}, false
	}
}

// Close releases the underlying connection.
func (s *EventStream) Close() error {
	s.done = true
	return s.body.Close()
}

// truncateForLog keeps malformed-line diagnostics bounded.
func truncateForLog(s string) string {
	const maxLen = 200
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
