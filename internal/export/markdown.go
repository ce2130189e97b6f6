// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Turn content is written as is,
// so code fences survive.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if len(t.Turns) == 0 {
		return nil, ErrEmpty
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Title()))
		fmt.Fprintf(&sb, "session: %s\n", escapeYAML(t.Session))
		if t.Bucket != "" {
			fmt.Fprintf(&sb, "bucket: %s\n", escapeYAML(t.Bucket))
		}
		if t.Path != "" {
			fmt.Fprintf(&sb, "path: %s\n", escapeYAML(t.Path))
		}
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(t.Model))
		fmt.Fprintf(&sb, "date: %s\n", t.ExportedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "turns: %d\n", len(t.Turns))
		sb.WriteString("generator: docchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title()))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session\n\n")
		fmt.Fprintf(&sb, "- **Session**: %s\n", t.Session)
		fmt.Fprintf(&sb, "- **Model**: %s\n", t.Model)
		if t.Bucket != "" || t.Path != "" {
			fmt.Fprintf(&sb, "- **Document**: %s/%s\n", t.Bucket, t.Path)
		}
		fmt.Fprintf(&sb, "- **Exported**: %s\n", formatTimestamp(t.ExportedAt))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, turn := range t.Turns {
		label := roleLabel(turn.Role)
		if e.options.IncludeTimestamps && !turn.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(turn.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
		if i < len(t.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleClient:
		return "You"
	case model.RoleAssistant:
		return "Assistant"
	case "":
		return "Unknown"
	default:
		r := []rune(string(role))
		return strings.ToUpper(string(r[0])) + string(r[1:])
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// escapeYAML quotes values containing YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
