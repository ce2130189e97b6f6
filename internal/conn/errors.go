// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import "fmt"

// AlreadyOpenError is returned by Open when the manager is already
// connecting to or connected to the requested URL.
type AlreadyOpenError struct {
	URL   string
	State State
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("connection already %s", e.State)
}

// ConnectionError reports a transport that failed to open or dropped.
type ConnectionError struct {
	// Op is "dial" or "read".
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// MalformedFrameError describes an inbound frame that carries no usable
// content. Such frames are logged and dropped.
type MalformedFrameError struct {
	Reason string
	Size   int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame (%d bytes): %s", e.Size, e.Reason)
}
