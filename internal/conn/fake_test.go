// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

// recorder captures dial and close calls in order across sockets.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

type fakeFrame struct {
	typ  websocket.MessageType
	data []byte
	err  error
}

type fakeSocket struct {
	url    string
	rec    *recorder
	frames chan fakeFrame

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeSocket(url string, rec *recorder) *fakeSocket {
	return &fakeSocket{
		url:    url,
		rec:    rec,
		frames: make(chan fakeFrame, 16),
		done:   make(chan struct{}),
	}
}

func (s *fakeSocket) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case f := <-s.frames:
		return f.typ, f.data, f.err
	case <-s.done:
		return 0, nil, errors.New("use of closed socket")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *fakeSocket) Close(code websocket.StatusCode, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("already closed")
	}
	s.closed = true
	close(s.done)
	s.rec.add("close " + s.url)
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) sendText(text string) {
	s.frames <- fakeFrame{typ: websocket.MessageText, data: []byte(text)}
}

// fakeDialer hands out fakeSockets and can be told to fail or block.
type fakeDialer struct {
	rec *recorder

	mu      sync.Mutex
	sockets map[string][]*fakeSocket
	fail    map[string]error
	gate    chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		rec:     &recorder{},
		sockets: make(map[string][]*fakeSocket),
		fail:    make(map[string]error),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.add("dial " + url)
	if err := d.fail[url]; err != nil {
		return nil, err
	}
	s := newFakeSocket(url, d.rec)
	d.sockets[url] = append(d.sockets[url], s)
	return s, nil
}

func (d *fakeDialer) socket(t *testing.T, url string) *fakeSocket {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.sockets[url]
	require.NotEmpty(t, list, "no socket dialed for %s", url)
	return list[len(list)-1]
}

// pumpUntil dispatches events until cond holds or the timeout expires.
func pumpUntil(t *testing.T, m *Manager, cond func(Update) bool) []Update {
	t.Helper()
	var seen []Update
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			up := m.Dispatch(ev)
			seen = append(seen, up)
			if cond(up) {
				return seen
			}
		case <-deadline:
			t.Fatal(fmt.Sprintf("condition not reached; updates: %+v", seen))
			return seen
		}
	}
}

func untilState(s State) func(Update) bool {
	return func(up Update) bool { return up.StateChanged && up.State == s }
}

func untilAppended(up Update) bool { return up.Appended }
