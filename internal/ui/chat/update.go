// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumina-analytics/lumina-tui/internal/controller"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func sendCmd(ctrl *controller.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		return SendFinishedMsg{Err: ctrl.Send(context.Background(), text)}
	}
}

func refreshSidebarCmd(ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		return SidebarRefreshedMsg{Err: ctrl.RefreshSidebar(context.Background())}
	}
}

func selectCmd(ctrl *controller.Controller, id string) tea.Cmd {
	return func() tea.Msg {
		return ConversationSelectedMsg{ID: id, Err: ctrl.SelectConversation(context.Background(), id)}
	}
}

func loadOlderCmd(ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		return OlderLoadedMsg{Err: ctrl.LoadOlder(context.Background())}
	}
}

func deleteCmd(ctrl *controller.Controller, id string) tea.Cmd {
	return func() tea.Msg {
		return ConversationDeletedMsg{ID: id, Err: ctrl.DeleteConversation(context.Background(), id)}
	}
}

func renameCmd(ctrl *controller.Controller, id, title string) tea.Cmd {
	return func() tea.Msg {
		return ConversationRenamedMsg{ID: id, Err: ctrl.RenameConversation(context.Background(), id, title)}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.renderer = nil // word wrap depends on width
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case EngineUpdatedMsg:
		m.refreshTranscript()
		return m, nil

	case SendFinishedMsg:
		m.refreshTranscript()
		switch {
		case errors.Is(msg.Err, controller.ErrRateLimited):
			m.setStatus("sending too fast, give it a second", true)
		case msg.Err != nil:
			m.setStatus(msg.Err.Error(), true)
		default:
			m.setStatus("ready", false)
		}
		return m, nil

	case SidebarRefreshedMsg:
		if msg.Err != nil {
			m.setStatus("sidebar refresh failed, showing cached list", true)
		}
		m.clampCursor()
		return m, nil

	case ConversationSelectedMsg:
		if msg.Err != nil {
			m.setStatus(msg.Err.Error(), true)
		} else {
			m.setStatus("ready", false)
			m.focus = focusInput
			m.textarea.Focus()
		}
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case OlderLoadedMsg:
		if msg.Err != nil {
			m.setStatus("could not load older messages", true)
		}
		m.refreshTranscript()
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.setStatus("delete failed: "+msg.Err.Error(), true)
		} else {
			m.setStatus("conversation deleted", false)
		}
		m.clampCursor()
		m.refreshTranscript()
		return m, nil

	case ConversationRenamedMsg:
		if msg.Err != nil {
			m.setStatus("rename failed: "+msg.Err.Error(), true)
		} else {
			m.setStatus("renamed", false)
		}
		return m, nil
	}

	return m.updateChildren(msg)
}

func (m Model) updateChildren(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.focus == focusInput {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.mode == modeRename {
			break
		}
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.textarea.Blur()
		} else {
			m.focus = focusInput
			m.textarea.Focus()
		}
		return m, nil

	case "esc":
		if m.mode == modeRename {
			m.mode = modeChat
			m.renameTarget = ""
			m.textarea.Reset()
			m.textarea.Placeholder = "Ask about your data..."
			m.setStatus("rename cancelled", false)
			return m, nil
		}
		m.focus = focusInput
		m.textarea.Focus()
		return m, nil

	case "ctrl+n":
		m.ctrl.StartNewChat()
		m.refreshTranscript()
		m.setStatus("new chat", false)
		return m, nil

	case "pgup":
		if m.viewport.AtTop() {
			return m, loadOlderCmd(m.ctrl)
		}
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		text := strings.TrimSpace(m.textarea.Value())

		if m.mode == modeRename {
			id := m.renameTarget
			m.mode = modeChat
			m.renameTarget = ""
			m.textarea.Reset()
			m.textarea.Placeholder = "Ask about your data..."
			if text == "" {
				m.setStatus("rename cancelled", false)
				return m, nil
			}
			return m, renameCmd(m.ctrl, id, text)
		}

		if m.ctrl.Streaming() {
			m.ctrl.Stop()
			m.setStatus("stopping...", false)
			return m, nil
		}
		if text == "" {
			return m, nil
		}
		m.textarea.Reset()
		m.setStatus("thinking...", false)
		return m, sendCmd(m.ctrl, text)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.ctrl.SidebarItems()

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.cursor < len(items) {
			return m, selectCmd(m.ctrl, items[m.cursor].ID)
		}
		return m, nil

	case "d":
		if m.cursor < len(items) {
			return m, deleteCmd(m.ctrl, items[m.cursor].ID)
		}
		return m, nil

	case "r":
		if m.cursor < len(items) {
			m.mode = modeRename
			m.renameTarget = items[m.cursor].ID
			m.focus = focusInput
			m.textarea.Reset()
			m.textarea.Placeholder = "New title..."
			m.textarea.Focus()
			m.setStatus("renaming "+items[m.cursor].DisplayTitle(), false)
		}
		return m, nil

	case "R":
		return m, refreshSidebarCmd(m.ctrl)
	}
	return m, nil
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.SidebarItems())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
