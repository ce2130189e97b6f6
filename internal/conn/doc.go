// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conn manages the single streaming connection of a chat session.
//
// A Manager moves through Unresolved, Connecting, Open and Closed. Open and
// Close are called from the owner's event loop; dialing and reading run on a
// background goroutine that reports back through a typed event channel. The
// owner awaits the next Event and hands it to Dispatch, which applies state
// transitions and inbound frames on the loop, in delivery order.
//
// Every connection attempt carries a generation number. Close and reopen
// bump it, so events from a torn-down socket are recognised as stale and
// dropped instead of touching the log after close.
package conn
