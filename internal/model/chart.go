// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "encoding/json"

// ChartSpec is a chart payload produced by the analytics backend and
// attached to at most one assistant message. The engine treats the data as
// opaque: it is carried, persisted as an artifact, and handed to the view
// layer unchanged. Data may also be an {"error": "..."} object when the
// backend failed to build the chart.
type ChartSpec struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the chart carries a non-empty payload.
func (c *ChartSpec) HasData() bool {
	return c != nil && len(c.Data) > 0
}
