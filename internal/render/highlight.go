// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// DefaultCodeStyle is the chroma style used when none is configured.
const DefaultCodeStyle = "monokai"

// Highlight colours code written in language with the named chroma style.
// An unknown language falls back to plain text.
func Highlight(code, language, style string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	s := chromaStyles.Get(style)
	if s == nil {
		s = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, fmt.Errorf("tokenise %s: %w", language, err)
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, s, iterator); err != nil {
		return code, fmt.Errorf("format %s: %w", language, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// KnownLanguage reports whether chroma has a lexer for language.
func KnownLanguage(language string) bool {
	return lexers.Get(language) != nil
}

// codeBlock frames highlighted code with a language badge.
func (r *Renderer) codeBlock(seg Segment) string {
	highlighted, err := Highlight(seg.Text, seg.Language, r.opts.CodeStyle)
	if err != nil {
		r.logger.Debug("highlight failed", zap.String("language", seg.Language), zap.Error(err))
	}

	badge := lipgloss.NewStyle().
		Foreground(r.palette.muted).
		Background(r.palette.badge).
		Padding(0, 1).
		Bold(true).
		Render(seg.Language)
	if seg.Open {
		badge += lipgloss.NewStyle().Foreground(r.palette.muted).Italic(true).Render(" …")
	}

	width := r.opts.Width - 4
	if width < 20 {
		width = 20
	}
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(r.palette.border).
		Padding(0, 1).
		MaxWidth(width).
		Render(badge + "\n" + highlighted)
}
