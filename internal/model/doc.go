// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat log: turns, the stream policy that decides
// how assistant frames become turns, and the Log store that the renderer
// reads from.
//
// The Log only grows or is reset as a whole. Stored turns are values and
// Snapshot hands out copies, so callers can never mutate the log through a
// snapshot.
package model
