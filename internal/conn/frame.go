// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/coder/websocket"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	// FrameContent carries assistant content.
	FrameContent FrameKind = iota
	// FrameStart marks the beginning of a streamed answer.
	FrameStart
	// FrameEnd marks the end of a streamed answer.
	FrameEnd
	// FrameError carries a server-side error message.
	FrameError
	// FrameInfo carries status text that is not part of the answer.
	FrameInfo
	// FrameEcho is the server repeating the local user's question.
	FrameEcho
)

func (k FrameKind) String() string {
	switch k {
	case FrameContent:
		return "content"
	case FrameStart:
		return "start"
	case FrameEnd:
		return "end"
	case FrameError:
		return "error"
	case FrameInfo:
		return "info"
	case FrameEcho:
		return "echo"
	default:
		return "unknown"
	}
}

// Frame is a decoded inbound message.
type Frame struct {
	Kind    FrameKind
	Content string
}

// envelope is the JSON shape used by streaming backends:
// {"sender":"bot","message":"...","type":"stream"}.
type envelope struct {
	Sender  string  `json:"sender"`
	Message *string `json:"message"`
	Type    *string `json:"type"`
}

// DecodeFrame interprets a websocket message. Plain text is content as-is.
// Text that parses as a JSON envelope is classified by its type field.
func DecodeFrame(typ websocket.MessageType, data []byte) (Frame, error) {
	if typ != websocket.MessageText {
		return Frame{}, &MalformedFrameError{Reason: "binary frame", Size: len(data)}
	}
	if !utf8.Valid(data) {
		return Frame{}, &MalformedFrameError{Reason: "invalid UTF-8", Size: len(data)}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, &MalformedFrameError{Reason: "empty frame", Size: len(data)}
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && (env.Type != nil || env.Message != nil) {
			return decodeEnvelope(env, len(data))
		}
	}

	return Frame{Kind: FrameContent, Content: string(data)}, nil
}

func decodeEnvelope(env envelope, size int) (Frame, error) {
	msg := ""
	if env.Message != nil {
		msg = *env.Message
	}

	switch strings.ToLower(env.Sender) {
	case "you", "user", "client", "human":
		return Frame{Kind: FrameEcho, Content: msg}, nil
	}

	kind := "stream"
	if env.Type != nil {
		kind = strings.ToLower(*env.Type)
	}
	switch kind {
	case "stream", "message", "":
		return Frame{Kind: FrameContent, Content: msg}, nil
	case "start":
		return Frame{Kind: FrameStart, Content: msg}, nil
	case "end":
		return Frame{Kind: FrameEnd, Content: msg}, nil
	case "error":
		return Frame{Kind: FrameError, Content: msg}, nil
	case "info":
		return Frame{Kind: FrameInfo, Content: msg}, nil
	}
	return Frame{}, &MalformedFrameError{Reason: "unknown frame type " + kind, Size: size}
}
