// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// =============================================================================
// MESSAGE LOG
// =============================================================================

// Log is the ordered, append-only record of a conversation.
// It is safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []ChatTurn

	// streaming is true while the last turn is an assistant turn that
	// merge-policy chunks still extend.
	streaming bool

	// version increments on every mutation.
	version uint64
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{turns: make([]ChatTurn, 0, 32)}
}

// Append adds a turn at the end of the log and ends any in-progress
// assistant stream.
func (l *Log) Append(turn ChatTurn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
	l.streaming = false
	l.version++
}

// AppendChunk records assistant content under the given policy.
// With PolicyAppend every chunk is a new turn. With PolicyMerge the chunk
// extends the in-progress assistant turn, opening one if needed; the stored
// value is replaced, never modified in place.
// It returns the turn as stored after the call.
func (l *Log) AppendChunk(content string, policy StreamPolicy) ChatTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.version++
	if policy == PolicyMerge && l.streaming && len(l.turns) > 0 {
		last := len(l.turns) - 1
		merged := l.turns[last].withContent(l.turns[last].Content + content)
		l.turns[last] = merged
		return merged
	}

	turn := AssistantTurn(content)
	l.turns = append(l.turns, turn)
	l.streaming = policy == PolicyMerge
	return turn
}

// EndStream closes the in-progress assistant turn, if any. The next chunk
// starts a new turn.
func (l *Log) EndStream() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streaming = false
}

// Streaming reports whether an assistant turn is still being merged into.
func (l *Log) Streaming() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.streaming
}

// Clear resets the log to empty.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = make([]ChatTurn, 0, 32)
	l.streaming = false
	l.version++
}

// Snapshot returns a copy of the turns in insertion order.
func (l *Log) Snapshot() []ChatTurn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ChatTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the most recent turn.
func (l *Log) Last() (ChatTurn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return ChatTurn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

// Version changes whenever the log changes. Renderers compare it to skip
// redundant work.
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}
