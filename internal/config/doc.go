// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// Configuration is resolved in layers, each overriding the previous one:
//   - Built-in defaults
//   - ~/.docchat/config.toml (or config.json as a fallback)
//   - A .env file in the working directory
//   - DOCCHAT_* environment variables
//   - Command-line flags (applied by the cli package)
//
// Values can be read and written with dot notation:
//
//	cfg.Get("chat.temperature")
//	cfg.Set("session.bucket", "my-bucket")
//
// Watch reloads the file when it changes on disk.
package config
