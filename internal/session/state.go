// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/jeranaias/docchat-tui/internal/conn"
)

// Header texts.
const (
	HeaderReady   = "What can I help you accomplish?"
	HeaderLoading = "📡 Loading..."
)

// Affordance is the visual state of the send control.
type Affordance int

const (
	// AffordanceIdle is shown while there is nothing to send (gray).
	AffordanceIdle Affordance = iota
	// AffordanceActive is shown once the question has text (accent colour).
	AffordanceActive
)

func (a Affordance) String() string {
	if a == AffordanceActive {
		return "active"
	}
	return "idle"
}

// UIState is derived from the connection state and question text. It is
// recomputed on demand and never stored.
type UIState struct {
	Header       string
	InputEnabled bool
	Send         Affordance
}

// Derive computes the UI state for a connection state and question text.
func Derive(state conn.State, question string) UIState {
	ui := UIState{Header: HeaderLoading}
	if state == conn.StateOpen {
		ui.Header = HeaderReady
		ui.InputEnabled = true
	}
	if strings.TrimSpace(question) != "" {
		ui.Send = AffordanceActive
	}
	return ui
}

// CanSend reports whether a submit would be accepted right now.
func (u UIState) CanSend(busy bool) bool {
	return u.InputEnabled && u.Send == AffordanceActive && !busy
}
