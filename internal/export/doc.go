// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to disk.
//
// Two formats are supported: Markdown, with YAML front matter and one
// heading per turn, and JSON carrying the session metadata and the turns.
//
//	t := export.NewTranscript(meta, log.Snapshot())
//	path, err := export.ToFile(t, export.NewMarkdownExporter(nil), nil)
package export
