// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/ui/components"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// View renders the chat screen: header, messages, input and status bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.header.View()
	input := m.input.View(m.ctrl.UIState().Send)
	status := m.status.View()

	bodyHeight := m.bodyHeight()
	var body string
	if m.ctrl.Log().Len() == 0 {
		body = components.RenderWelcome(m.theme, m.ctrl.Params(), m.width, bodyHeight)
	} else {
		body = m.viewport.View()
	}
	body = m.withToasts(body, bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)
}

// withToasts draws the toast stack over the bottom of the message area.
func (m Model) withToasts(body string, height int) string {
	body = lipgloss.NewStyle().Height(height).MaxHeight(height).Render(body)
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return body
	}

	stack := components.RenderToastStack(toasts, m.width)
	stackHeight := lipgloss.Height(stack)
	if stackHeight >= height {
		return lipgloss.NewStyle().MaxHeight(height).Render(stack)
	}

	lines := strings.Split(body, "\n")
	keep := height - stackHeight
	if keep < len(lines) {
		lines = lines[:keep]
	}
	return strings.Join(lines, "\n") + "\n" + stack
}

// renderHelp renders the commands and key bindings.
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.WelcomeTitle.Render("Commands"))
	b.WriteString("\n\n")
	width := 0
	for _, c := range commandHelp {
		width = max(width, util.StringWidth(c.usage))
	}
	for _, c := range commandHelp {
		b.WriteString("  " + util.PadRight(c.usage, width+2) + m.theme.Muted.Render(c.desc) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.WelcomeTitle.Render("Keys"))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keyMap))
	b.WriteString("\n\n")
	b.WriteString(m.theme.Hint.Render("Esc or F1 to close"))

	box := m.theme.WelcomeBox.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
