// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies who authored a turn.
type Role string

const (
	// RoleClient is a question typed by the local user.
	RoleClient Role = "client"
	// RoleAssistant is content streamed back by the service.
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the label shown above a turn.
func (r Role) DisplayName() string {
	switch r {
	case RoleClient:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Icon returns the emoji prefix used by the web client for the role.
func (r Role) Icon() string {
	switch r {
	case RoleClient:
		return "👨‍💻"
	case RoleAssistant:
		return "🤖"
	default:
		return "•"
	}
}

// =============================================================================
// CHAT TURN
// =============================================================================

// ChatTurn is one message in the log.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with a fresh id and the current time.
func NewTurn(role Role, content string) ChatTurn {
	return ChatTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ClientTurn is shorthand for NewTurn(RoleClient, content).
func ClientTurn(content string) ChatTurn {
	return NewTurn(RoleClient, content)
}

// AssistantTurn is shorthand for NewTurn(RoleAssistant, content).
func AssistantTurn(content string) ChatTurn {
	return NewTurn(RoleAssistant, content)
}

// IsClient reports whether the turn was authored locally.
func (t ChatTurn) IsClient() bool {
	return t.Role == RoleClient
}

// withContent returns a copy of t carrying content. Identity and
// timestamp are preserved.
func (t ChatTurn) withContent(content string) ChatTurn {
	t.Content = content
	return t
}
