// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling policy. The session
// engine treats each category differently: transport errors fail soft,
// cancellation is user intent, parse errors are swallowed per line, and
// persistence errors never roll back in-memory state.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeTransport
	ErrTypeCancelled
	ErrTypeParse
	ErrTypePersistence
	ErrTypeUnauthorized
	ErrTypeNotFound
	ErrTypeLocalID
)

// Sentinel errors for easy checking.
var (
	ErrCancelled    = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}
	ErrUnauthorized = &ClientError{Type: ErrTypeUnauthorized, Message: "not authenticated"}
	ErrNotFound     = &ClientError{Type: ErrTypeNotFound, Message: "not found"}
	// ErrLocalID guards the invariant that optimistic local ids are never
	// sent to the backend as if they were confirmed.
	ErrLocalID = &ClientError{Type: ErrTypeLocalID, Message: "refusing to send unconfirmed local id to backend"}
)

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// errType extracts the ErrorType from an error chain.
func errType(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// IsCancelled reports whether err was caused by user-initiated
// cancellation rather than a transport failure.
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return errType(err) == ErrTypeCancelled
}

// IsTransport reports whether err is a network or HTTP-level failure.
func IsTransport(err error) bool {
	return errType(err) == ErrTypeTransport
}

// IsPersistence reports whether err is a failed backend write after a
// successful stream.
func IsPersistence(err error) bool {
	return errType(err) == ErrTypePersistence
}

// IsUnauthorized reports whether the backend rejected the credential.
func IsUnauthorized(err error) bool {
	return errType(err) == ErrTypeUnauthorized
}

// transportError wraps a low-level failure, mapping context cancellation
// to the cancellation category so a user stop is never reported as a
// network outage.
func transportError(message string, cause error) *ClientError {
	if errors.Is(cause, context.Canceled) {
		return &ClientError{Type: ErrTypeCancelled, Message: "request cancelled", Cause: cause}
	}
	return &ClientError{Type: ErrTypeTransport, Message: message, Cause: cause}
}
