// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header        lipgloss.Style
	HeaderReady   lipgloss.Style
	HeaderLoading lipgloss.Style

	// Input
	InputBorder        lipgloss.Style
	InputBorderFocused lipgloss.Style
	SendActive         lipgloss.Style
	SendIdle           lipgloss.Style
	Hint               lipgloss.Style

	// Status bar
	StatusBar     lipgloss.Style
	StatusKey     lipgloss.Style
	StatusValue   lipgloss.Style
	StatusOpen    lipgloss.Style
	StatusPending lipgloss.Style
	StatusClosed  lipgloss.Style

	// Scroll indicators and welcome panel
	ScrollIndicator lipgloss.Style
	WelcomeBox      lipgloss.Style
	WelcomeTitle    lipgloss.Style
	Muted           lipgloss.Style
}

// LayoutMode is picked from the terminal width.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota
	LayoutMedium
	LayoutWide
)

// NewTheme creates a theme that follows the terminal background.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
		Width:        80,
		Height:       24,
	}
	t.initStyles()
	return t
}

// NewThemeFor forces "dark" or "light"; anything else follows the terminal.
func NewThemeFor(name string) *Theme {
	t := NewTheme()
	switch name {
	case "dark":
		t.IsDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		t.IsDark = false
		lipgloss.SetHasDarkBackground(false)
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	t.HeaderReady = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.HeaderLoading = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputBorderFocused = t.InputBorder.BorderForeground(Purple)
	t.SendActive = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.SendIdle = lipgloss.NewStyle().Foreground(Gray)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.StatusBar = lipgloss.NewStyle().Background(SurfaceDim).Foreground(TextSecondary).Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusValue = lipgloss.NewStyle().Foreground(TextPrimary)
	t.StatusOpen = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusPending = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusClosed = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.ScrollIndicator = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.WelcomeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)
	t.WelcomeTitle = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the layout for the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	switch {
	case t.Width < 60:
		return LayoutNarrow
	case t.Width < 100:
		return LayoutMedium
	default:
		return LayoutWide
	}
}

// Name returns "dark" or "light".
func (t *Theme) Name() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}
