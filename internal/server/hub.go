// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ErrNoSocket is returned when a channel has no registered socket.
var ErrNoSocket = errors.New("no socket registered for channel")

// Frame is the JSON envelope written to streaming sockets.
type Frame struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// peer is one registered socket. Writes are serialized.
type peer struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (p *peer) write(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ws.Write(ctx, websocket.MessageText, data)
}

// Hub maps session ids to sockets. A newer socket for a session replaces
// the older one, which is closed.
type Hub struct {
	mu     sync.Mutex
	peers  map[string]*peer
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{peers: make(map[string]*peer), logger: logger}
}

// Register adds ws under session and returns a function that removes it
// again, unless it has been replaced in the meantime.
func (h *Hub) Register(session string, ws *websocket.Conn) (unregister func()) {
	p := &peer{ws: ws}

	h.mu.Lock()
	old := h.peers[session]
	h.peers[session] = p
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("socket replaced", zap.String("session", session))
		// Close waits for the peer's close frame; the new socket must not.
		go func() {
			_ = old.ws.Close(websocket.StatusPolicyViolation, "replaced by a newer connection")
		}()
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.peers[session] == p {
			delete(h.peers, session)
		}
	}
}

// Has reports whether session has a socket.
func (h *Hub) Has(session string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[session]
	return ok
}

// Len returns the number of registered sockets.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Send writes f to the socket registered for session.
func (h *Hub) Send(ctx context.Context, session string, f Frame) error {
	h.mu.Lock()
	p := h.peers[session]
	h.mu.Unlock()
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNoSocket, session)
	}
	return p.write(ctx, f)
}

// CloseAll closes every socket.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*peer)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p *peer) {
			defer wg.Done()
			_ = p.ws.Close(websocket.StatusGoingAway, "server shutting down")
		}(p)
	}
	wg.Wait()
}
