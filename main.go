// docchat - a terminal client for chatting with a document over a streaming
// question-answering service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/docchat-tui/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
