// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"errors"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// State is the lifecycle state of the managed connection.
type State int

const (
	StateUnresolved State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

type eventKind int

const (
	evOpened eventKind = iota
	evDialFailed
	evFrame
	evDropped
)

// Event is a transport occurrence produced off-loop. It is opaque; pass it
// to Manager.Dispatch.
type Event struct {
	gen  uint64
	kind eventKind
	typ  websocket.MessageType
	data []byte
	err  error
}

// Update describes the effect of dispatching one event.
type Update struct {
	// StateChanged is set when the event moved the state machine.
	StateChanged bool
	State        State

	// Appended is set when the message log changed.
	Appended bool
	// Frame is the decoded frame, when one was applied.
	Frame *Frame

	// Err is a *ConnectionError or *MalformedFrameError.
	Err error
	// ServerError carries the text of an error frame.
	ServerError string

	// Stale is set when the event belonged to a torn-down connection.
	Stale bool
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns at most one live streaming connection.
type Manager struct {
	dialer Dialer
	log    *model.Log
	logger *zap.Logger
	events chan Event

	mu      sync.Mutex
	state   State
	url     string
	gen     uint64
	sock    Socket
	cancel  context.CancelFunc
	policy  model.StreamPolicy
	lastErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l.Named("conn") }
}

// WithPolicy sets the initial stream policy.
func WithPolicy(p model.StreamPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager creates a manager that appends inbound content to log.
func NewManager(log *model.Log, opts ...Option) *Manager {
	m := &Manager{
		dialer: WebsocketDialer{},
		log:    log,
		logger: zap.NewNop(),
		events: make(chan Event, 64),
		state:  StateUnresolved,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// URL returns the URL of the current or last connection.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Err returns the error that last moved the manager to Closed, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SetPolicy changes how subsequent content frames are recorded.
func (m *Manager) SetPolicy(p model.StreamPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
	if p == model.PolicyAppend {
		m.log.EndStream()
	}
}

// Policy returns the current stream policy.
func (m *Manager) Policy() model.StreamPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// Events delivers transport events for Dispatch.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Next waits for the next transport event.
func (m *Manager) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-m.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Open connects to url. Any existing connection is closed first, and its
// socket is released before the new dial starts. Opening the URL that is
// already connecting or open returns *AlreadyOpenError.
func (m *Manager) Open(url string) error {
	if url == "" {
		return errors.New("conn: empty url")
	}

	m.mu.Lock()
	if (m.state == StateConnecting || m.state == StateOpen) && m.url == url {
		state := m.state
		m.mu.Unlock()
		return &AlreadyOpenError{URL: url, State: state}
	}

	old := m.detachLocked()
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.url = url
	m.lastErr = nil
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if old != nil {
		m.release(old, "reconnecting")
	}

	go m.run(ctx, gen, url)
	return nil
}

// Close tears down the connection. It is idempotent and leaves the manager
// Closed whatever the prior state.
func (m *Manager) Close() {
	m.mu.Lock()
	old := m.detachLocked()
	m.gen++
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if old != nil {
		m.release(old, "closed by client")
	}
}

// detachLocked cancels the running connection goroutine and takes the socket
// out of the manager. The caller releases the returned socket.
func (m *Manager) detachLocked() Socket {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	sock := m.sock
	m.sock = nil
	return sock
}

func (m *Manager) release(sock Socket, reason string) {
	if err := sock.Close(websocket.StatusNormalClosure, reason); err != nil {
		m.logger.Debug("socket close", zap.Error(err))
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Info("state change",
		zap.Stringer("from", m.state),
		zap.Stringer("to", s),
		zap.String("url", endpoint.Redact(m.url)))
	m.state = s
}

// run dials and then reads until the context is cancelled or the socket
// fails. It never touches state directly; it reports through events.
func (m *Manager) run(ctx context.Context, gen uint64, url string) {
	sock, err := m.dialer.Dial(ctx, url)
	if err != nil {
		m.emit(ctx, Event{gen: gen, kind: evDialFailed, err: err})
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.release(sock, "superseded")
		return
	}
	m.sock = sock
	m.mu.Unlock()

	if !m.emit(ctx, Event{gen: gen, kind: evOpened}) {
		return
	}

	for {
		typ, data, err := sock.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.emit(ctx, Event{gen: gen, kind: evDropped, err: err})
			return
		}
		if !m.emit(ctx, Event{gen: gen, kind: evFrame, typ: typ, data: data}) {
			return
		}
	}
}

func (m *Manager) emit(ctx context.Context, ev Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Dispatch applies ev on the caller's loop. Events from a previous
// generation are dropped.
func (m *Manager) Dispatch(ev Event) Update {
	m.mu.Lock()
	if ev.gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("stale event dropped", zap.Uint64("gen", ev.gen))
		return Update{Stale: true}
	}

	switch ev.kind {
	case evOpened:
		m.setStateLocked(StateOpen)
		m.mu.Unlock()
		return Update{StateChanged: true, State: StateOpen}

	case evDialFailed, evDropped:
		op := "dial"
		if ev.kind == evDropped {
			op = "read"
		}
		cerr := &ConnectionError{Op: op, URL: m.url, Err: ev.err}
		old := m.detachLocked()
		m.gen++
		m.lastErr = cerr
		m.setStateLocked(StateClosed)
		m.mu.Unlock()

		if old != nil {
			m.release(old, "read failed")
		}
		m.logger.Warn("connection lost", zap.String("op", op), zap.Error(ev.err))
		return Update{StateChanged: true, State: StateClosed, Err: cerr}

	case evFrame:
		policy := m.policy
		open := m.state == StateOpen
		m.mu.Unlock()
		if !open {
			return Update{Stale: true}
		}
		return m.applyFrame(ev, policy)
	}

	m.mu.Unlock()
	return Update{}
}

func (m *Manager) applyFrame(ev Event, policy model.StreamPolicy) Update {
	frame, err := DecodeFrame(ev.typ, ev.data)
	if err != nil {
		m.logger.Warn("malformed frame dropped", zap.Int("size", len(ev.data)), zap.Error(err))
		return Update{Err: err}
	}

	switch frame.Kind {
	case FrameContent:
		if frame.Content == "" {
			return Update{Frame: &frame}
		}
		m.log.AppendChunk(frame.Content, policy)
		return Update{Appended: true, Frame: &frame}

	case FrameStart, FrameEnd:
		m.log.EndStream()
		return Update{Frame: &frame}

	case FrameError:
		m.logger.Warn("server error frame", zap.String("message", frame.Content))
		return Update{Frame: &frame, ServerError: frame.Content}

	default:
		m.logger.Debug("frame ignored", zap.Stringer("kind", frame.Kind))
		return Update{Frame: &frame}
	}
}

// Pump awaits events and dispatches them until ctx is done, calling handle
// with each non-stale update. The line-oriented commands use it as their
// event loop.
func (m *Manager) Pump(ctx context.Context, handle func(Update)) error {
	for {
		// A handle that cancels ctx leaves later events queued.
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := m.Next(ctx)
		if err != nil {
			return err
		}
		up := m.Dispatch(ev)
		if up.Stale || handle == nil {
			continue
		}
		handle(up)
	}
}
