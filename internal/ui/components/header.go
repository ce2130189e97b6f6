// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// Header shows the prompt line. While loading it carries a spinner.
type Header struct {
	Text    string
	Loading bool
	Width   int

	spinner spinner.Model
	theme   *styles.Theme
}

// NewHeader creates a header.
func NewHeader(theme *styles.Theme) *Header {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Amber)
	return &Header{Width: 80, spinner: s, theme: theme}
}

// Set updates the header text and loading flag.
func (h *Header) Set(text string, loading bool) {
	h.Text = text
	h.Loading = loading
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// Tick starts the spinner animation.
func (h *Header) Tick() tea.Cmd {
	return h.spinner.Tick
}

// Update advances the spinner. Ticks stop being requested once loading ends.
func (h *Header) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	h.spinner, cmd = h.spinner.Update(msg)
	if !h.Loading {
		return nil
	}
	return cmd
}

// View renders the header.
func (h *Header) View() string {
	text := h.theme.HeaderReady.Render(h.Text)
	if h.Loading {
		text = h.spinner.View() + " " + h.theme.HeaderLoading.Render(h.Text)
	}
	return h.theme.Header.
		Width(h.Width).
		Align(lipgloss.Center).
		Render(text)
}
