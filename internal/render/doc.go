// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns chat turns into terminal text.
//
// Prose goes through glamour. Fenced code blocks that declare a language
// are cut out and highlighted with chroma; fences without a language are
// left to glamour. Rendered turns are cached per content and width, so a
// streaming turn is only re-rendered when it changes.
package render
