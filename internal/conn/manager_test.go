// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/docchat-tui/internal/model"
)

const (
	urlA = "ws://host/ws/proxy?session=a"
	urlB = "ws://host/ws/proxy?session=b"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeDialer, *model.Log) {
	t.Helper()
	d := newFakeDialer()
	log := model.NewLog()
	m := NewManager(log, append([]Option{WithDialer(d)}, opts...)...)
	t.Cleanup(m.Close)
	return m, d, log
}

func TestManager_InitialStateUnresolved(t *testing.T) {
	m := NewManager(model.NewLog())
	assert.Equal(t, StateUnresolved, m.State())
	assert.Empty(t, m.URL())
}

func TestManager_OpenReachesOpen(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Open(urlA))
	assert.Equal(t, StateConnecting, m.State())

	pumpUntil(t, m, untilState(StateOpen))
	assert.Equal(t, StateOpen, m.State())
	assert.Equal(t, urlA, m.URL())
}

func TestManager_FrameAppendsAssistantTurn(t *testing.T) {
	m, d, log := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	d.socket(t, urlA).sendText("Hi there")
	pumpUntil(t, m, untilAppended)

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, model.RoleAssistant, snap[0].Role)
	assert.Equal(t, "Hi there", snap[0].Content)
}

func TestManager_FramesAppliedInDeliveryOrder(t *testing.T) {
	m, d, log := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	sock := d.socket(t, urlA)
	for _, s := range []string{"one", "two", "three"} {
		sock.sendText(s)
	}
	count := 0
	pumpUntil(t, m, func(up Update) bool {
		if up.Appended {
			count++
		}
		return count == 3
	})

	snap := log.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "one", snap[0].Content)
	assert.Equal(t, "two", snap[1].Content)
	assert.Equal(t, "three", snap[2].Content)
}

func TestManager_MergePolicyStreamsIntoOneTurn(t *testing.T) {
	m, d, log := newTestManager(t, WithPolicy(model.PolicyMerge))
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	sock := d.socket(t, urlA)
	sock.sendText(`{"sender":"bot","message":"","type":"start"}`)
	sock.sendText(`{"sender":"bot","message":"Hel","type":"stream"}`)
	sock.sendText(`{"sender":"bot","message":"lo","type":"stream"}`)
	sock.sendText(`{"sender":"bot","message":"","type":"end"}`)
	pumpUntil(t, m, func(up Update) bool { return up.Frame != nil && up.Frame.Kind == FrameEnd })

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Hello", snap[0].Content)
	assert.False(t, log.Streaming())
}

func TestManager_MalformedFrameLoggedAndDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m, d, log := newTestManager(t, WithLogger(zap.New(core)))
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	sock := d.socket(t, urlA)
	sock.frames <- fakeFrame{typ: websocket.MessageBinary, data: []byte{0x01, 0x02}}
	ups := pumpUntil(t, m, func(up Update) bool { return up.Err != nil })

	var mfe *MalformedFrameError
	require.True(t, errors.As(ups[len(ups)-1].Err, &mfe))
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, StateOpen, m.State(), "malformed frames do not close the connection")
	assert.Equal(t, 1, logs.FilterMessage("malformed frame dropped").Len())

	sock.sendText("still works")
	pumpUntil(t, m, untilAppended)
	assert.Equal(t, 1, log.Len())
}

func TestManager_OpenSameURLIsAlreadyOpen(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Open(urlA))

	err := m.Open(urlA)
	var aoe *AlreadyOpenError
	require.True(t, errors.As(err, &aoe))
	assert.Equal(t, StateConnecting, aoe.State)

	pumpUntil(t, m, untilState(StateOpen))
	err = m.Open(urlA)
	require.True(t, errors.As(err, &aoe))
	assert.Equal(t, StateOpen, aoe.State)
}

func TestManager_ReopenClosesPreviousFirst(t *testing.T) {
	m, d, _ := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))
	first := d.socket(t, urlA)

	require.NoError(t, m.Open(urlB))
	assert.True(t, first.isClosed(), "previous socket is released inside Open")
	pumpUntil(t, m, untilState(StateOpen))

	calls := d.rec.list()
	assert.Equal(t, []string{"dial " + urlA, "close " + urlA, "dial " + urlB}, calls)
	assert.Equal(t, urlB, m.URL())
}

func TestManager_StaleFramesDroppedAfterReopen(t *testing.T) {
	m, d, log := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	// Queue a frame from A, then switch to B before it is dispatched.
	d.socket(t, urlA).sendText("late from A")
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Open(urlB))
	pumpUntil(t, m, untilState(StateOpen))

	d.socket(t, urlB).sendText("from B")
	pumpUntil(t, m, untilAppended)

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "from B", snap[0].Content)
}

func TestManager_CloseIdempotent(t *testing.T) {
	m, d, _ := newTestManager(t)

	m.Close()
	assert.Equal(t, StateClosed, m.State())

	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))
	sock := d.socket(t, urlA)

	m.Close()
	m.Close()
	assert.Equal(t, StateClosed, m.State())
	assert.True(t, sock.isClosed())
	assert.Equal(t, 1, countCalls(d.rec.list(), "close "+urlA))
}

func TestManager_CloseWhileConnectingReleasesLateSocket(t *testing.T) {
	m, d, _ := newTestManager(t)
	d.gate = make(chan struct{})

	require.NoError(t, m.Open(urlA))
	m.Close()
	close(d.gate)

	// The dial may complete after Close; its socket must still be released
	// and no Open transition may be observed.
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case ev := <-m.Events():
			up := m.Dispatch(ev)
			assert.True(t, up.Stale)
			continue
		default:
		}
		break
	}
	assert.Equal(t, StateClosed, m.State())
	d.mu.Lock()
	socks := d.sockets[urlA]
	d.mu.Unlock()
	for _, s := range socks {
		assert.True(t, s.isClosed())
	}
}

func TestManager_DialFailureIsConnectionError(t *testing.T) {
	m, d, _ := newTestManager(t)
	d.fail[urlA] = errors.New("connection refused")

	require.NoError(t, m.Open(urlA))
	ups := pumpUntil(t, m, untilState(StateClosed))

	var cerr *ConnectionError
	require.True(t, errors.As(ups[len(ups)-1].Err, &cerr))
	assert.Equal(t, "dial", cerr.Op)
	assert.Equal(t, StateClosed, m.State())
	assert.ErrorAs(t, m.Err(), &cerr)
}

func TestManager_DropClosesWithConnectionError(t *testing.T) {
	m, d, _ := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	d.socket(t, urlA).frames <- fakeFrame{err: errors.New("EOF")}
	ups := pumpUntil(t, m, untilState(StateClosed))

	var cerr *ConnectionError
	require.True(t, errors.As(ups[len(ups)-1].Err, &cerr))
	assert.Equal(t, "read", cerr.Op)

	// Closed can re-enter Connecting.
	require.NoError(t, m.Open(urlA))
	assert.Equal(t, StateConnecting, m.State())
}

func TestManager_ServerErrorFrameSurfaced(t *testing.T) {
	m, d, log := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	d.socket(t, urlA).sendText(`{"sender":"bot","message":"index missing","type":"error"}`)
	ups := pumpUntil(t, m, func(up Update) bool { return up.ServerError != "" })
	assert.Equal(t, "index missing", ups[len(ups)-1].ServerError)
	assert.Equal(t, 0, log.Len())
}

func TestManager_PumpStopsOnContextCancel(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	states := make(chan State, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Pump(ctx, func(up Update) {
			if up.StateChanged {
				states <- up.State
			}
		})
	}()

	require.NoError(t, m.Open(urlA))
	select {
	case s := <-states:
		assert.Equal(t, StateOpen, s)
	case <-time.After(2 * time.Second):
		t.Fatal("no state update")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
}

func TestManager_PumpLeavesEventsQueuedAfterCancel(t *testing.T) {
	m, d, log := newTestManager(t)
	require.NoError(t, m.Open(urlA))
	pumpUntil(t, m, untilState(StateOpen))

	sock := d.socket(t, urlA)
	sock.sendText("one")
	sock.sendText("two")
	require.Eventually(t, func() bool { return len(m.Events()) == 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handled := 0
	err := m.Pump(ctx, func(Update) {
		handled++
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, log.Len())
	assert.Len(t, m.Events(), 1)
}

func TestManager_EmptyURL(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.Error(t, m.Open(""))
	assert.Equal(t, StateUnresolved, m.State())
}

func countCalls(calls []string, want string) int {
	n := 0
	for _, c := range calls {
		if c == want {
			n++
		}
	}
	return n
}
