// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// DefaultPageSize matches the backend's default messages page size.
const DefaultPageSize = 30

// PageCursor tracks pagination state for the active conversation. It is
// reset whenever the active conversation changes; Page is the highest
// page fetched so far, zero before anything has loaded, and has_more is
// unknown until the first page load reports it.
type PageCursor struct {
	Page         int  `json:"page"`
	PageSize     int  `json:"page_size"`
	HasMore      bool `json:"has_more"`
	HasMoreKnown bool `json:"-"`
}

// NewPageCursor returns the reset cursor state: nothing loaded yet,
// fixed size, has_more unknown.
func NewPageCursor(pageSize int) PageCursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageCursor{PageSize: pageSize}
}

// Record stores the outcome of loading a page.
func (p *PageCursor) Record(page int, hasMore bool) {
	p.Page = page
	p.HasMore = hasMore
	p.HasMoreKnown = true
}

// NextPage returns the next page to request: 1 on a fresh cursor, or 0
// if the cursor knows there is nothing older to fetch.
func (p *PageCursor) NextPage() int {
	if p.HasMoreKnown && !p.HasMore {
		return 0
	}
	return p.Page + 1
}
