// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the Lumina analytics backend.
//
// The backend is an external collaborator: this package wraps its REST
// surface (sidebar, conversation CRUD, paginated messages, message and
// artifact persistence) and its /query endpoint, which streams assistant
// output as newline-delimited JSON events.
//
// # Key Types
//
//   - Client: backend HTTP client, bearer credential attached per request
//   - EventStream: line-by-line reader over a /query response body
//   - Event: one parsed stream event (token, chart or error)
//   - ClientError: typed error with an ErrorType for handling policy
//
// # Usage
//
// Open a query stream and fold it:
//
//	src, err := client.Query(ctx, "total sales", history, sessionID)
//	if err != nil { ... }
//	defer src.Close()
//	for {
//	    ev, err := src.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package api
