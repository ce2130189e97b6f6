// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/scroll"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT VIEWPORT COMPONENT - Scrollable chat area with follow policy
// =============================================================================

// ChatViewport is the scrollable turn list. It satisfies scroll.Viewport.
type ChatViewport struct {
	viewport viewport.Model
	follow   *scroll.Follow
	theme    *styles.Theme
	width    int
	height   int
	ready    bool
}

// NewChatViewport creates a viewport that starts pinned to the bottom.
func NewChatViewport(theme *styles.Theme) *ChatViewport {
	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()
	return &ChatViewport{
		viewport: vp,
		follow:   scroll.NewFollow(),
		theme:    theme,
		width:    80,
		height:   20,
	}
}

// YOffset implements scroll.Viewport.
func (cv *ChatViewport) YOffset() int { return cv.viewport.YOffset }

// SetYOffset implements scroll.Viewport. Offsets are clamped to the content.
func (cv *ChatViewport) SetYOffset(n int) { cv.viewport.SetYOffset(n) }

// ContentHeight implements scroll.Viewport.
func (cv *ChatViewport) ContentHeight() int { return cv.viewport.TotalLineCount() }

// VisibleHeight implements scroll.Viewport.
func (cv *ChatViewport) VisibleHeight() int { return cv.viewport.Height }

// SetSize updates the dimensions. One line is reserved for the scroll
// indicator.
func (cv *ChatViewport) SetSize(width, height int) {
	cv.width = width
	cv.height = height
	cv.viewport.Width = width
	cv.viewport.Height = max(1, height-1)
	cv.ready = true
	cv.follow.OnContentChange(cv)
}

// SetContent replaces the rendered log. It must be called after the log
// changed so the follow policy sees the new height.
func (cv *ChatViewport) SetContent(content string) {
	cv.viewport.SetContent(content)
	cv.follow.OnContentChange(cv)
}

// Pinned reports whether new content will scroll into view.
func (cv *ChatViewport) Pinned() bool {
	return cv.follow.Pinned()
}

// ScrollUp scrolls up by n lines.
func (cv *ChatViewport) ScrollUp(n int) {
	cv.viewport.LineUp(n)
	cv.follow.OnScroll(cv)
}

// ScrollDown scrolls down by n lines.
func (cv *ChatViewport) ScrollDown(n int) {
	cv.viewport.LineDown(n)
	cv.follow.OnScroll(cv)
}

// PageUp scrolls up one page.
func (cv *ChatViewport) PageUp() {
	cv.viewport.ViewUp()
	cv.follow.OnScroll(cv)
}

// PageDown scrolls down one page.
func (cv *ChatViewport) PageDown() {
	cv.viewport.ViewDown()
	cv.follow.OnScroll(cv)
}

// ScrollToTop jumps to the first line.
func (cv *ChatViewport) ScrollToTop() {
	cv.viewport.GotoTop()
	cv.follow.OnScroll(cv)
}

// ScrollToBottom jumps to the end and pins.
func (cv *ChatViewport) ScrollToBottom() {
	cv.follow.Pin(cv)
}

// Update handles scrolling keys and the mouse wheel.
func (cv *ChatViewport) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "pgup":
			cv.PageUp()
		case "pgdown":
			cv.PageDown()
		case "ctrl+up":
			cv.ScrollUp(1)
		case "ctrl+down":
			cv.ScrollDown(1)
		case "ctrl+home":
			cv.ScrollToTop()
		case "ctrl+end":
			cv.ScrollToBottom()
		}
	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			cv.ScrollUp(3)
		case tea.MouseWheelDown:
			cv.ScrollDown(3)
		}
	}
	return nil
}

// View renders the viewport with a "more below" indicator when unpinned.
func (cv *ChatViewport) View() string {
	if !cv.ready {
		return ""
	}
	indicator := ""
	if !cv.follow.Pinned() {
		below := cv.ContentHeight() - cv.VisibleHeight() - cv.YOffset()
		indicator = cv.theme.ScrollIndicator.
			Width(cv.width).
			Align(lipgloss.Center).
			Render(fmt.Sprintf("v %d more lines below (ctrl+end) v", max(0, below)))
	}
	return cv.viewport.View() + "\n" + indicator
}
