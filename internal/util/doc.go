// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the config, UI and CLI packages:
// staged file replacement, display-width aware truncation, and lenient parsing of
// user-typed flag values.
package util
