// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Socket is the subset of *websocket.Conn the manager uses.
type Socket interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// DefaultReadLimit caps a single inbound message.
const DefaultReadLimit = 1 << 20

// WebsocketDialer dials with github.com/coder/websocket.
type WebsocketDialer struct {
	// HTTPClient is used for the handshake. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// HandshakeTimeout bounds the opening handshake. Zero means 15s.
	HandshakeTimeout time.Duration
	// ReadLimit caps inbound message size. Zero means DefaultReadLimit.
	ReadLimit int64
}

// Dial opens a websocket to url.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, err
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)
	return c, nil
}
