// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// ENGINE MESSAGES
// =============================================================================

// EngineUpdatedMsg signals that engine state changed and the view should
// re-read the buffer and sidebar. Sent from the controller's notify
// callback, including once per folded stream event.
type EngineUpdatedMsg struct{}

// SendFinishedMsg reports a Send call returning.
type SendFinishedMsg struct {
	Err error
}

// SidebarRefreshedMsg reports a sidebar reload.
type SidebarRefreshedMsg struct {
	Err error
}

// ConversationSelectedMsg reports a conversation switch finishing.
type ConversationSelectedMsg struct {
	ID  string
	Err error
}

// OlderLoadedMsg reports a history pagination fetch.
type OlderLoadedMsg struct {
	Err error
}

// ConversationDeletedMsg reports a delete finishing.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// ConversationRenamedMsg reports a rename finishing.
type ConversationRenamedMsg struct {
	ID  string
	Err error
}
