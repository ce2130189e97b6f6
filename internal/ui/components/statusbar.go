// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// StatusInfo is the data shown in the status bar.
type StatusInfo struct {
	Session     string
	Model       string
	Temperature float64
	Proxy       bool
	Conn        conn.State
	Turns       int
	Busy        bool
	Pinned      bool
}

// StatusBar renders a one-line summary at the bottom of the screen.
type StatusBar struct {
	Info  StatusInfo
	Width int
	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// SetWidth updates the width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetBusy marks a send as in flight.
func (s *StatusBar) SetBusy(busy bool) {
	s.Info.Busy = busy
}

func (s *StatusBar) connSegment() string {
	switch s.Info.Conn {
	case conn.StateOpen:
		return s.theme.StatusOpen.Render("● open")
	case conn.StateConnecting:
		return s.theme.StatusPending.Render("◌ connecting")
	case conn.StateClosed:
		return s.theme.StatusClosed.Render("○ closed")
	default:
		return s.theme.StatusPending.Render("○ waiting for session")
	}
}

func (s *StatusBar) pair(k, v string) string {
	return s.theme.StatusKey.Render(k+" ") + s.theme.StatusValue.Render(v)
}

// View renders the bar. Segments are dropped from the right on narrow
// terminals.
func (s *StatusBar) View() string {
	session := s.Info.Session
	if session == "" {
		session = "-"
	}
	mode := "direct"
	if s.Info.Proxy {
		mode = "proxy"
	}

	left := []string{
		s.connSegment(),
		s.pair("session", util.TruncateWidth(session, 12)),
	}
	right := []string{
		s.pair("model", s.Info.Model),
		s.pair("temp", fmt.Sprintf("%.2f", s.Info.Temperature)),
		s.pair("mode", mode),
		s.pair("turns", fmt.Sprintf("%d", s.Info.Turns)),
	}
	if s.Info.Busy {
		right = append([]string{s.theme.StatusPending.Render("sending...")}, right...)
	}
	if !s.Info.Pinned {
		right = append(right, s.theme.Muted.Render("scrolled"))
	}

	sep := s.theme.Muted.Render(" │ ")
	inner := max(0, s.Width-2)
	line := strings.Join(append(left, right...), sep)
	for lipgloss.Width(line) > inner && len(right) > 0 {
		right = right[:len(right)-1]
		line = strings.Join(append(left, right...), sep)
	}
	return s.theme.StatusBar.Width(s.Width).Render(line)
}
