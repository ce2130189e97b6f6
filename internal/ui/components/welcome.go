// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// RenderWelcome renders the panel shown before the first question. When
// the session is incomplete it lists what is missing and how to set it.
func RenderWelcome(theme *styles.Theme, p endpoint.Params, width, height int) string {
	var b strings.Builder
	b.WriteString(theme.WelcomeTitle.Render("docchat"))
	b.WriteString("\n\n")
	b.WriteString("Ask questions about a document and read the answers as they stream in.\n\n")

	if missing := p.Missing(); len(missing) > 0 {
		b.WriteString(styles.RenderWarning("Not connected yet. Missing: " + strings.Join(missing, ", ")))
		b.WriteString("\n\n")
		for _, m := range missing {
			switch m {
			case "session":
				b.WriteString(theme.Hint.Render("  /session new        start a fresh session id") + "\n")
			case "bucket":
				b.WriteString(theme.Hint.Render("  /bucket <name>      storage bucket holding the document") + "\n")
			case "path":
				b.WriteString(theme.Hint.Render("  /path <file>        document path inside the bucket") + "\n")
			}
		}
		b.WriteString(theme.Hint.Render("  /proxy on           connect through the session proxy") + "\n")
	} else {
		b.WriteString(theme.Hint.Render("Document: "+p.FilePath) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.Muted.Render("Enter sends · Alt+Enter newline · /help for commands"))

	box := theme.WelcomeBox.Width(min(70, max(30, width-4))).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
