// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the visual pieces of the chat TUI.

# Components

  - Header (header.go) - prompt line with a spinner while connecting.
  - ChatViewport (viewport.go) - scrollable turn list that follows new
    content only while pinned to the bottom.
  - Input (input.go) - two-row question editor with the send indicator.
  - ToastManager (toast.go) - auto-dismissing notifications.
  - StatusBar (statusbar.go) - session, model and connection summary.
  - Welcome (welcome.go) - panel shown while the log is empty.

Components hold no chat state of their own; the chat model pushes the
controller's derived state into them before rendering.
*/
package components
