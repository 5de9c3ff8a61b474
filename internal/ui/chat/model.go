// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the terminal front end: a sidebar of conversations, a
// transcript viewport and an input box, driven by the session
// controller.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/lumina-analytics/lumina-tui/internal/controller"
	"github.com/lumina-analytics/lumina-tui/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// focusArea is which pane receives keys.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// inputMode distinguishes chatting from renaming.
type inputMode int

const (
	modeChat inputMode = iota
	modeRename
)

const sidebarWidth = 32

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctrl   *controller.Controller
	styles styles.Styles

	markdown bool
	renderer *glamour.TermRenderer

	textarea textarea.Model
	viewport viewport.Model
	spin     spinner.Model

	width  int
	height int
	ready  bool

	focus        focusArea
	mode         inputMode
	renameTarget string
	cursor       int

	status    string
	statusErr bool
}

// New creates the chat screen bound to a controller.
func New(ctrl *controller.Controller, theme styles.Theme, markdown bool) Model {
	st := styles.New(theme)

	ta := textarea.New()
	ta.Placeholder = "Ask about your data..."
	ta.Prompt = "> "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.AssistLabel

	return Model{
		ctrl:     ctrl,
		styles:   st,
		markdown: markdown,
		textarea: ta,
		spin:     sp,
		status:   "ready",
	}
}

// Init starts the spinner and loads the sidebar.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		refreshSidebarCmd(m.ctrl),
	)
}

// setStatus records the one-line status shown under the input.
func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// markdownRenderer lazily builds the glamour renderer for the current
// width. Returns nil when markdown rendering is off or unavailable.
func (m *Model) markdownRenderer() *glamour.TermRenderer {
	if !m.markdown {
		return nil
	}
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.styles.Theme.Name),
			glamour.WithWordWrap(m.transcriptWidth()),
		)
		if err != nil {
			m.markdown = false
			return nil
		}
		m.renderer = r
	}
	return m.renderer
}

func (m *Model) transcriptWidth() int {
	w := m.width - sidebarWidth - 4
	if w < 20 {
		w = 20
	}
	return w
}
