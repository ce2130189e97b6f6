// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the docchat command line.

# Commands

	docchat                    full-screen chat (TUI)
	docchat chat               line-oriented chat REPL
	docchat ask <question>     send one question and print the answer
	docchat config <sub>       show|get|set|path|init
	docchat status             resolve the session and probe the stream
	docchat serve              run the development backend
	docchat version            print version information

# Global flags

	--config PATH       config file (default ~/.docchat/config.toml)
	--session ID        session id
	--new-session       start with a fresh random session id
	--bucket NAME       storage bucket
	--path FILE         document path
	--proxy             connect through the session proxy
	--model NAME        model override
	--ws-url URL        streaming base URL
	--api-url URL       send base URL
	--debug             debug logging

Commands return errors; Execute maps them to exit codes.
*/
package cli
