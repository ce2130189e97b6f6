// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// InputRows is the editor height.
const InputRows = 2

// Input is the question editor. Enter is left to the caller; Alt+Enter and
// Ctrl+J insert a newline.
type Input struct {
	area    textarea.Model
	theme   *styles.Theme
	width   int
	enabled bool
}

// NewInput creates the editor.
func NewInput(theme *styles.Theme) *Input {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about the document..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(InputRows)
	ta.KeyMap.InsertNewline = key.NewBinding(
		key.WithKeys("alt+enter", "ctrl+j"),
		key.WithHelp("alt+enter", "newline"),
	)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()
	return &Input{area: ta, theme: theme, width: 80, enabled: true}
}

// SetWidth resizes the editor.
func (in *Input) SetWidth(width int) {
	in.width = width
	// border (2) + send indicator (4)
	in.area.SetWidth(max(10, width-6))
}

// SetEnabled focuses or blurs the editor.
func (in *Input) SetEnabled(enabled bool) tea.Cmd {
	if enabled == in.enabled {
		return nil
	}
	in.enabled = enabled
	if enabled {
		in.area.Placeholder = "Ask a question about the document..."
		return in.area.Focus()
	}
	in.area.Placeholder = "Waiting for the connection..."
	in.area.Blur()
	return nil
}

// Enabled reports whether the editor accepts input.
func (in *Input) Enabled() bool {
	return in.enabled
}

// Value returns the text.
func (in *Input) Value() string {
	return in.area.Value()
}

// SetValue replaces the text.
func (in *Input) SetValue(s string) {
	in.area.SetValue(s)
}

// Reset clears the text.
func (in *Input) Reset() {
	in.area.Reset()
}

// Update forwards editing messages while enabled.
func (in *Input) Update(msg tea.Msg) tea.Cmd {
	if !in.enabled {
		return nil
	}
	var cmd tea.Cmd
	in.area, cmd = in.area.Update(msg)
	return cmd
}

// Height is the rendered height including the border.
func (in *Input) Height() int {
	return InputRows + 2
}

// View renders the editor with the send indicator in the given state.
func (in *Input) View(send session.Affordance) string {
	indicator := in.theme.SendIdle.Render(" ➤")
	if send == session.AffordanceActive {
		indicator = in.theme.SendActive.Render(" ➤")
	}
	border := in.theme.InputBorder
	if in.enabled {
		border = in.theme.InputBorderFocused
	}
	body := lipgloss.JoinHorizontal(lipgloss.Center, in.area.View(), indicator)
	return border.Width(max(10, in.width-2)).Render(body)
}
