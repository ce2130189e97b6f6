// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("transcript has no turns")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Meta describes the session a transcript came from.
type Meta struct {
	Session string `json:"session"`
	Bucket  string `json:"bucket,omitempty"`
	Path    string `json:"path,omitempty"`
	Model   string `json:"model"`
}

// Transcript is a snapshot of the log ready to export.
type Transcript struct {
	Meta
	ExportedAt time.Time        `json:"exported_at"`
	Turns      []model.ChatTurn `json:"turns"`
}

// NewTranscript stamps a snapshot with the current time.
func NewTranscript(meta Meta, turns []model.ChatTurn) *Transcript {
	return &Transcript{Meta: meta, ExportedAt: time.Now(), Turns: turns}
}

// Title is the first client question, or a generic title.
func (t *Transcript) Title() string {
	for _, turn := range t.Turns {
		if turn.IsClient() {
			return util.TruncateWidth(strings.TrimSpace(firstLine(turn.Content)), 60)
		}
	}
	return "Chat transcript"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter converts a transcript to one file format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)
	// FileExtension includes the leading dot.
	FileExtension() string
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir receives generated file names. Default: current directory.
	OutputDir string
	// Path, when set, is used verbatim instead of a generated name.
	Path string
	// IncludeMetadata writes the front matter and session section.
	IncludeMetadata bool
	// IncludeTimestamps adds a time to each turn heading.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for "md"/"markdown" or "json".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ToFile exports t and writes it atomically. It returns the written path.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	path := opts.Path
	if path == "" {
		dir := opts.OutputDir
		if dir == "" {
			dir = "."
		}
		name := fmt.Sprintf("chat_%s_%s%s",
			sanitizeFilename(t.Session),
			t.ExportedAt.Format("20060102_150405"),
			exporter.FileExtension())
		path = filepath.Join(dir, name)
	}

	if err := util.ReplaceFile(path, content, util.SharedPerms); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "session"
	}
	return string(out)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
