// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles defines the color themes and lipgloss styles shared by
// the TUI views.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme is one named color scheme.
type Theme struct {
	Name string

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Accent    lipgloss.Color
	Border    lipgloss.Color
}

// DarkTheme is the default scheme.
var DarkTheme = Theme{
	Name:      "dark",
	Primary:   lipgloss.Color("213"),
	Secondary: lipgloss.Color("141"),
	Text:      lipgloss.Color("252"),
	Muted:     lipgloss.Color("241"),
	Error:     lipgloss.Color("203"),
	Accent:    lipgloss.Color("84"),
	Border:    lipgloss.Color("238"),
}

// LightTheme suits light terminal backgrounds.
var LightTheme = Theme{
	Name:      "light",
	Primary:   lipgloss.Color("127"),
	Secondary: lipgloss.Color("97"),
	Text:      lipgloss.Color("235"),
	Muted:     lipgloss.Color("246"),
	Error:     lipgloss.Color("160"),
	Accent:    lipgloss.Color("29"),
	Border:    lipgloss.Color("250"),
}

// ByName resolves a theme name. "auto" picks the theme matching the
// terminal's detected background; anything unrecognized falls back to dark.
func ByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme
	case "auto":
		return Detect()
	}
	return DarkTheme
}

// Detect chooses a theme from the terminal background. Terminals that do
// not answer the background query are treated as dark.
func Detect() Theme {
	if termenv.HasDarkBackground() {
		return DarkTheme
	}
	return LightTheme
}

// =============================================================================
// STYLE SET
// =============================================================================

// Styles is the ready-to-use style set for the chat view.
type Styles struct {
	Theme Theme

	AppTitle      lipgloss.Style
	StatusBar     lipgloss.Style
	StatusError   lipgloss.Style
	Sidebar       lipgloss.Style
	SidebarTitle  lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style
	SidebarMeta   lipgloss.Style
	UserLabel     lipgloss.Style
	AssistLabel   lipgloss.Style
	Message       lipgloss.Style
	Pending       lipgloss.Style
	ErrorText     lipgloss.Style
	ChartBadge    lipgloss.Style
	InputBox      lipgloss.Style
	Help          lipgloss.Style
}

// New builds the style set for a theme.
func New(theme Theme) Styles {
	return Styles{
		Theme: theme,

		AppTitle: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted),
		StatusError: lipgloss.NewStyle().
			Foreground(theme.Error).
			Bold(true),
		Sidebar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(theme.Border).
			PaddingRight(1),
		SidebarTitle: lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Bold(true),
		SidebarItem: lipgloss.NewStyle().
			Foreground(theme.Text),
		SidebarActive: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		SidebarMeta: lipgloss.NewStyle().
			Foreground(theme.Muted),
		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
		AssistLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		Message: lipgloss.NewStyle().
			Foreground(theme.Text),
		Pending: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),
		ErrorText: lipgloss.NewStyle().
			Foreground(theme.Error),
		ChartBadge: lipgloss.NewStyle().
			Foreground(theme.Accent).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		InputBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),
	}
}
