// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea model for the docchat terminal UI.

The model is a thin shell around a session.Controller. Transport events are
awaited off-loop by a command that calls Controller.Next and are applied on
the Bubble Tea loop with Controller.Dispatch, so the message log is only
written from one goroutine. Questions are prepared on the loop, sent from a
command, and completed when the result message arrives.

# Files

  - model.go - Model, Options, Init
  - update.go - key, event and send handling
  - view.go - layout
  - commands.go - slash command registry
  - keys.go - key bindings and help
  - messages.go - message types and commands
*/
package chat
