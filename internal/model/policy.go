// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// StreamPolicy decides how inbound assistant content frames become turns.
type StreamPolicy int

const (
	// PolicyAppend records every content frame as its own assistant turn.
	PolicyAppend StreamPolicy = iota
	// PolicyMerge grows a single in-progress assistant turn until the
	// stream ends or the user asks the next question.
	PolicyMerge
)

// String returns the config spelling of the policy.
func (p StreamPolicy) String() string {
	switch p {
	case PolicyAppend:
		return "append"
	case PolicyMerge:
		return "merge"
	default:
		return fmt.Sprintf("StreamPolicy(%d)", int(p))
	}
}

// ParseStreamPolicy parses "append" or "merge". Empty means append.
func ParseStreamPolicy(s string) (StreamPolicy, error) {
	switch s {
	case "", "append":
		return PolicyAppend, nil
	case "merge":
		return PolicyMerge, nil
	}
	return PolicyAppend, fmt.Errorf("unknown stream policy %q", s)
}
