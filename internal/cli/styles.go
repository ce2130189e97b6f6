// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
	configureColor()
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)

	// LabelStyle is used for left-aligned field labels.
	LabelStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Width(14)

	// ValueStyle is used for field values.
	ValueStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)

	// AssistantStyle labels streamed answers in line-oriented output.
	AssistantStyle = lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true)
)

// Notice printers used by the REPL, status and serve output.
var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	infoColor = color.New(color.FgCyan)
	dimColor  = color.New(color.FgHiBlack)
)
