// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumina-analytics/lumina-tui/internal/model"
	"github.com/lumina-analytics/lumina-tui/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout (re)computes pane sizes after a resize.
func (m *Model) layout() {
	inputHeight := 5  // bordered textarea
	chromeHeight := 3 // title + status

	transcriptHeight := m.height - inputHeight - chromeHeight
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(m.transcriptWidth(), transcriptHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.transcriptWidth()
		m.viewport.Height = transcriptHeight
	}
	m.textarea.SetWidth(m.width - 4)
}

// refreshTranscript re-renders the message list into the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom || m.ctrl.Streaming() {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	title := m.styles.AppTitle.Render("lumina") + " " +
		m.styles.SidebarMeta.Render(m.headerNote())

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		m.viewport.View(),
	)

	input := m.styles.InputBox.Render(m.textarea.View())

	return strings.Join([]string{
		title,
		body,
		input,
		m.renderStatus(),
	}, "\n")
}

func (m Model) headerNote() string {
	active := m.ctrl.Active()
	if active == nil {
		return "new chat"
	}
	return active.DisplayTitle()
}

func (m Model) renderStatus() string {
	help := m.styles.Help.Render("enter send/stop · tab sidebar · ctrl+n new · pgup older · ctrl+c quit")
	status := m.status
	style := m.styles.StatusBar
	if m.statusErr {
		style = m.styles.StatusError
	}
	return style.Render(status) + "  " + help
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	items := m.ctrl.SidebarItems()
	activeID := m.ctrl.ActiveID()

	var b strings.Builder
	heading := "Conversations"
	if len(items) > 0 {
		heading += " (" + util.IntToString(len(items)) + ")"
	}
	b.WriteString(m.styles.SidebarTitle.Render(heading))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(m.styles.SidebarMeta.Render("nothing yet"))
	}

	for i, conv := range items {
		line := util.TruncateWidth(conv.DisplayTitle(), sidebarWidth-4)

		style := m.styles.SidebarItem
		switch {
		case conv.ID == activeID:
			style = m.styles.SidebarActive
		case conv.Pending:
			style = m.styles.Pending
		}

		marker := "  "
		if m.focus == focusSidebar && i == m.cursor {
			marker = "> "
		}
		b.WriteString(marker + style.Render(line) + "\n")

		if conv.LastMessage != "" {
			preview := util.TruncateWidth(conv.LastMessage, sidebarWidth-6)
			b.WriteString("    " + m.styles.SidebarMeta.Render(preview) + "\n")
		}
	}

	return m.styles.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderMessages() string {
	msgs := m.ctrl.Messages()
	if len(msgs) == 0 {
		return m.styles.SidebarMeta.Render("Ask a question to get started.")
	}

	var b strings.Builder
	if m.ctrl.HasOlder() {
		b.WriteString(m.styles.Help.Render("· pgup for older messages ·"))
		b.WriteString("\n\n")
	}
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg *model.Message) string {
	var b strings.Builder

	switch msg.Role {
	case model.RoleUser:
		b.WriteString(m.styles.UserLabel.Render(msg.Role.DisplayName()))
	default:
		label := m.styles.AssistLabel.Render(msg.Role.DisplayName())
		if msg.Streaming {
			label += " " + m.spin.View()
		}
		b.WriteString(label)
	}
	b.WriteString("\n")

	content := msg.DisplayContent()
	if content == "" && msg.Streaming {
		b.WriteString(m.styles.Pending.Render("..."))
		return b.String()
	}

	b.WriteString(m.renderContent(msg, content))

	if msg.Chart != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.ChartBadge.Render(fmt.Sprintf("chart: %s", chartLabel(msg.Chart))))
	}
	return b.String()
}

// renderContent runs finalized assistant answers through glamour;
// everything else renders raw so streaming stays cheap.
func (m Model) renderContent(msg *model.Message, content string) string {
	if msg.Role == model.RoleAssistant && !msg.Streaming {
		if r := m.markdownRenderer(); r != nil {
			if out, err := r.Render(content); err == nil {
				return strings.TrimRight(out, "\n")
			}
		}
	}
	return m.styles.Message.Render(content)
}

func chartLabel(chart *model.ChartSpec) string {
	if chart.Type != "" {
		return chart.Type
	}
	return "attached"
}
