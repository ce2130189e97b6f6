// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// FAKES
// =============================================================================

type stubSocket struct {
	frames chan string
	once   sync.Once
	done   chan struct{}
}

func (s *stubSocket) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case f := <-s.frames:
		return websocket.MessageText, []byte(f), nil
	case <-s.done:
		return 0, nil, errors.New("closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *stubSocket) Close(websocket.StatusCode, string) error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubDialer struct {
	mu    sync.Mutex
	urls  []string
	socks []*stubSocket
}

func (d *stubDialer) Dial(ctx context.Context, url string) (conn.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &stubSocket{frames: make(chan string, 8), done: make(chan struct{})}
	d.urls = append(d.urls, url)
	d.socks = append(d.socks, s)
	return s, nil
}

func (d *stubDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *stubDialer) last() *stubSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socks[len(d.socks)-1]
}

// fakeSender records requests and returns a scripted result.
type fakeSender struct {
	mu     sync.Mutex
	reqs   []api.SendRequest
	err    error
	during func()
	panics bool
}

func (f *fakeSender) Send(ctx context.Context, req api.SendRequest) (*api.SendResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	during, err, panics := f.during, f.err, f.panics
	f.mu.Unlock()

	if during != nil {
		during()
	}
	if panics {
		panic("sender exploded")
	}
	if err != nil {
		return nil, err
	}
	return &api.SendResponse{Status: 200}, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

const wsBase = "ws://chat.test"

var completeParams = endpoint.Params{SessionID: "s1", BucketName: "b", FilePath: "f"}

func defaultSettings() Settings {
	return Settings{
		Model:        "gpt-3.5-turbo",
		SystemPrompt: "You are a helpful assistant.",
		Temperature:  0.5,
		StoreKind:    "faiss",
	}
}

func newTestController(t *testing.T, p endpoint.Params) (*Controller, *stubDialer, *fakeSender) {
	t.Helper()
	d := &stubDialer{}
	s := &fakeSender{}
	log := model.NewLog()
	c := New(Options{
		Log:      log,
		Conn:     conn.NewManager(log, conn.WithDialer(d)),
		Resolver: endpoint.NewResolver(wsBase, "key"),
		Sender:   s,
		Settings: defaultSettings(),
		Params:   p,
	})
	t.Cleanup(c.Shutdown)
	return c, d, s
}

// pumpUntil dispatches transport events until cond holds.
func pumpUntil(t *testing.T, c *Controller, cond func(conn.Update) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := c.Next(ctx)
		require.NoError(t, err, "condition not reached")
		if cond(c.Dispatch(ev)) {
			return
		}
	}
}

func opened(up conn.Update) bool { return up.StateChanged && up.State == conn.StateOpen }

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_AppendsClientTurnAndTogglesBusy(t *testing.T) {
	c, _, s := newTestController(t, completeParams)

	var transitions []bool
	c.OnBusyChange(func(b bool) { transitions = append(transitions, b) })

	var busyDuring bool
	var turnsDuring int
	s.during = func() {
		busyDuring = c.Busy()
		turnsDuring = c.Log().Len()
	}

	require.NoError(t, c.Submit(context.Background(), "Hello"))

	snap := c.Log().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, model.RoleClient, snap[0].Role)
	assert.Equal(t, "Hello", snap[0].Content)

	assert.True(t, busyDuring, "busy while the call is in flight")
	assert.Equal(t, 1, turnsDuring, "client turn is appended before the call")
	assert.False(t, c.Busy())
	assert.Equal(t, []bool{true, false}, transitions)
	assert.Empty(t, c.Question(), "question cleared on success")
}

func TestSubmit_BuildsRequestFromSession(t *testing.T) {
	c, _, s := newTestController(t, completeParams)
	require.NoError(t, c.UpdateSettings(func(st *Settings) {
		st.Sources = true
		st.Temperature = 0.25
	}))

	require.NoError(t, c.Submit(context.Background(), "  What is this?  "))
	require.Equal(t, 1, s.calls())

	req := s.reqs[0]
	assert.Equal(t, "s1", req.Channel)
	assert.Equal(t, "What is this?", req.Question)
	assert.Equal(t, "You are a helpful assistant.", req.System)
	assert.InDelta(t, 0.25, req.Temperature, 1e-9)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.True(t, req.Sources)
	assert.Equal(t, api.NewContext("faiss", "b", "f"), req.Context)
}

func TestSubmit_EmptyIsIgnored(t *testing.T) {
	c, _, s := newTestController(t, completeParams)

	for _, q := range []string{"", "   ", "\n\t"} {
		require.NoError(t, c.Submit(context.Background(), q))
	}
	assert.Equal(t, 0, c.Log().Len())
	assert.Equal(t, 0, s.calls())
	assert.False(t, c.Busy())
	assert.Empty(t, c.SendError())

	_, err := c.Prepare(" ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestSubmit_RejectedKeepsQuestion(t *testing.T) {
	c, _, s := newTestController(t, completeParams)
	s.err = &api.SendRejectedError{Status: 429, Detail: "rate limited"}

	c.SetQuestion("Explain section 3")
	err := c.Submit(context.Background(), c.Question())

	var rej *api.SendRejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "rate limited", c.SendError())
	assert.Equal(t, "Explain section 3", c.Question())
	assert.False(t, c.Busy())

	c.DismissSendError()
	assert.Empty(t, c.SendError())
}

func TestSubmit_PanicStillClearsBusy(t *testing.T) {
	c, _, s := newTestController(t, completeParams)
	s.panics = true

	assert.Panics(t, func() { _ = c.Submit(context.Background(), "boom") })
	assert.False(t, c.Busy())
	assert.NotEmpty(t, c.SendError())
}

func TestSubmit_RejectsWhileBusy(t *testing.T) {
	c, _, _ := newTestController(t, completeParams)

	_, err := c.Prepare("first")
	require.NoError(t, err)
	assert.True(t, c.Busy())

	_, err = c.Prepare("second")
	assert.ErrorIs(t, err, ErrBusy)

	c.Complete(nil)
	assert.False(t, c.Busy())
	assert.Equal(t, 1, c.Log().Len())
}

func TestSubmit_InvalidRequestNotAppended(t *testing.T) {
	c, _, s := newTestController(t, endpoint.Params{BucketName: "b", FilePath: "f"})

	err := c.Submit(context.Background(), "no session yet")
	assert.ErrorIs(t, err, api.ErrInvalidRequest)
	assert.Equal(t, 0, c.Log().Len())
	assert.Equal(t, 0, s.calls())
	assert.False(t, c.Busy())
	assert.Equal(t, "no session yet", c.Question())
}

func TestSubmit_NormalizesUnicode(t *testing.T) {
	c, _, s := newTestController(t, completeParams)
	// "e" + combining acute accent becomes the single precomposed rune.
	require.NoError(t, c.Submit(context.Background(), "cafe\u0301"))
	assert.Equal(t, "caf\u00e9", s.reqs[0].Question)
}

// =============================================================================
// CONNECTION LIFECYCLE
// =============================================================================

func TestStart_IncompleteParamsStayUnresolved(t *testing.T) {
	for _, p := range []endpoint.Params{
		{SessionID: "s1", BucketName: "b"},
		{BucketName: "b", FilePath: "f"},
		{SessionID: "s1", FilePath: "f"},
	} {
		c, d, _ := newTestController(t, p)
		require.NoError(t, c.Start())
		assert.Equal(t, conn.StateUnresolved, c.ConnState())
		assert.Empty(t, d.dialed())
		assert.Equal(t, HeaderLoading, c.UIState().Header)
	}
}

func TestStart_ConnectsAndDerivesHeader(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	assert.Equal(t, conn.StateConnecting, c.ConnState())
	assert.False(t, c.UIState().InputEnabled)

	pumpUntil(t, c, opened)
	ui := c.UIState()
	assert.Equal(t, HeaderReady, ui.Header)
	assert.True(t, ui.InputEnabled)
	assert.Equal(t, []string{wsBase + "/ws/v1/chat/vectorstore?api_key=key&bucket=b&path=f&session=s1"}, d.dialed())
}

func TestSetParams_UnchangedDoesNotReconnect(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)

	require.NoError(t, c.SetParams(completeParams))
	require.NoError(t, c.Start())
	assert.Len(t, d.dialed(), 1)
	assert.Equal(t, conn.StateOpen, c.ConnState())
}

func TestSetParams_NewSessionReconnects(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)
	first := d.last()

	p := completeParams
	p.SessionID = "s2"
	require.NoError(t, c.SetParams(p))
	select {
	case <-first.done:
	default:
		t.Fatal("previous socket still open")
	}
	pumpUntil(t, c, opened)
	assert.Len(t, d.dialed(), 2)
	assert.Contains(t, d.dialed()[1], "session=s2")
}

func TestSetParams_IncompleteDisconnects(t *testing.T) {
	c, _, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)

	require.NoError(t, c.SetParams(endpoint.Params{SessionID: "s1"}))
	assert.Equal(t, conn.StateClosed, c.ConnState())
	assert.Equal(t, HeaderLoading, c.UIState().Header)
}

func TestStart_ConcurrentWithSetParamsKeepsLatestSession(t *testing.T) {
	c, _, _ := newTestController(t, completeParams)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Start())
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Reconnect())
	}()

	last := completeParams
	for i := 0; i < 50; i++ {
		p := completeParams
		p.SessionID = fmt.Sprintf("s%d", i)
		require.NoError(t, c.SetParams(p))
		last = p
	}
	wg.Wait()

	// A late Start must not leave the connection on an older session.
	require.NoError(t, c.Start())
	assert.Equal(t, last, c.Params())
	assert.Contains(t, c.resolver.Current(), "session=s49")
	assert.Equal(t, c.resolver.Current(), c.conn.URL())

	require.NoError(t, c.SetParams(last))
	pumpUntil(t, c, func(up conn.Update) bool {
		return c.ConnState() == conn.StateOpen
	})
	assert.Contains(t, c.conn.URL(), "session=s49")
}

func TestInboundFrameBecomesAssistantTurn(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)

	d.last().frames <- "Hi there"
	pumpUntil(t, c, func(up conn.Update) bool { return up.Appended })

	snap := c.Log().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, model.RoleAssistant, snap[0].Role)
	assert.Equal(t, "Hi there", snap[0].Content)
}

func TestSettings_PolicyAppliesToStream(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.UpdateSettings(func(s *Settings) { s.Policy = model.PolicyMerge }))
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)

	sock := d.last()
	sock.frames <- "Hel"
	sock.frames <- "lo"
	n := 0
	pumpUntil(t, c, func(up conn.Update) bool {
		if up.Appended {
			n++
		}
		return n == 2
	})
	snap := c.Log().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Hello", snap[0].Content)
}

func TestSettings_Validation(t *testing.T) {
	c, _, _ := newTestController(t, completeParams)
	assert.Error(t, c.UpdateSettings(func(s *Settings) { s.Temperature = 2 }))
	assert.Error(t, c.UpdateSettings(func(s *Settings) { s.Model = "" }))
	assert.Equal(t, defaultSettings(), c.Settings())
}

func TestNewChat(t *testing.T) {
	c, _, _ := newTestController(t, completeParams)
	assert.False(t, c.NewChat(), "nothing to clear")

	require.NoError(t, c.Submit(context.Background(), "one"))
	require.NoError(t, c.Submit(context.Background(), "two"))
	assert.True(t, c.NewChat())
	assert.Empty(t, c.Log().Snapshot())
}

func TestShutdownIsIdempotent(t *testing.T) {
	c, d, _ := newTestController(t, completeParams)
	require.NoError(t, c.Start())
	pumpUntil(t, c, opened)

	c.Shutdown()
	c.Shutdown()
	assert.Equal(t, conn.StateClosed, c.ConnState())
	select {
	case <-d.last().done:
	default:
		t.Fatal("socket not released")
	}
}
