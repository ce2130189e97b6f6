// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/render"
	"github.com/jeranaias/docchat-tui/internal/session"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSocket struct {
	frames chan string
	once   sync.Once
	done   chan struct{}
}

func (s *fakeSocket) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case f := <-s.frames:
		return websocket.MessageText, []byte(f), nil
	case <-s.done:
		return 0, nil, errors.New("closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *fakeSocket) Close(websocket.StatusCode, string) error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	socks []*fakeSocket
}

func (d *fakeDialer) Dial(context.Context, string) (conn.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSocket{frames: make(chan string, 8), done: make(chan struct{})}
	d.socks = append(d.socks, s)
	return s, nil
}

func (d *fakeDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socks[len(d.socks)-1]
}

type fakeSender struct {
	err    error
	panics bool
}

func (f *fakeSender) Send(context.Context, api.SendRequest) (*api.SendResponse, error) {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &api.SendResponse{Status: 200}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

var completeParams = endpoint.Params{SessionID: "s1", BucketName: "b", FilePath: "doc.pdf"}

func newTestModel(t *testing.T, p endpoint.Params, sender *fakeSender) (Model, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	log := model.NewLog()
	ctrl := session.New(session.Options{
		Log:      log,
		Conn:     conn.NewManager(log, conn.WithDialer(d)),
		Resolver: endpoint.NewResolver("ws://chat.test", "key"),
		Sender:   sender,
		Settings: session.Settings{Model: "gpt-3.5-turbo", Temperature: 0.5, StoreKind: "faiss"},
		Params:   p,
	})
	t.Cleanup(ctrl.Shutdown)

	r, err := render.New(render.Options{Plain: true, Width: 78})
	require.NoError(t, err)

	m := New(Options{Controller: ctrl, Renderer: r, Config: config.Default()})
	t.Cleanup(m.Close)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, d
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

// pumpOne waits for one transport event and feeds it to the model.
func pumpOne(t *testing.T, m Model) Model {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := m.ctrl.Next(ctx)
	require.NoError(t, err)
	return update(t, m, connEventMsg{ev: ev})
}

func openModel(t *testing.T, sender *fakeSender) (Model, *fakeDialer) {
	t.Helper()
	m, d := newTestModel(t, completeParams, sender)
	require.NoError(t, m.ctrl.Start())
	m = pumpOne(t, m)
	require.Equal(t, conn.StateOpen, m.ctrl.ConnState())
	return m, d
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func enter(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func command(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return enter(t, m)
}

// =============================================================================
// TESTS
// =============================================================================

func TestInputDisabledUntilOpen(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})
	assert.False(t, m.input.Enabled())
	assert.Contains(t, m.View(), session.HeaderLoading)

	require.NoError(t, m.ctrl.Start())
	m = pumpOne(t, m)
	assert.True(t, m.input.Enabled())
	assert.Contains(t, m.View(), session.HeaderReady)
}

func TestEnterIgnoredWhileNotOpen(t *testing.T) {
	m, _ := newTestModel(t, endpoint.Params{SessionID: "s1"}, &fakeSender{})
	m.input.SetValue("hello")
	m.ctrl.SetQuestion("hello")

	m, cmd := enter(t, m)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, m.ctrl.Log().Len())
	assert.False(t, m.ctrl.Busy())
}

func TestSubmitAppendsClientTurnAndClearsOnSuccess(t *testing.T) {
	m, _ := openModel(t, &fakeSender{})
	m = typeText(t, m, "what is this?")

	m, cmd := enter(t, m)
	require.NotNil(t, cmd)
	assert.True(t, m.ctrl.Busy())
	assert.True(t, m.status.Info.Busy)
	assert.Contains(t, m.status.View(), "sending")
	last, ok := m.ctrl.Log().Last()
	require.True(t, ok)
	assert.Equal(t, model.RoleClient, last.Role)
	assert.Equal(t, "what is this?", last.Content)

	m = update(t, m, sendDoneMsg{text: "what is this?"})
	assert.False(t, m.ctrl.Busy())
	assert.False(t, m.status.Info.Busy)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, 1, m.ctrl.Log().Len())
}

func TestSendFailureKeepsQuestionAndShowsDetail(t *testing.T) {
	m, _ := openModel(t, &fakeSender{})
	m = typeText(t, m, "hello")
	m, _ = enter(t, m)

	err := &api.SendRejectedError{Status: 429, Detail: "rate limited"}
	m = update(t, m, sendDoneMsg{text: "hello", err: err})

	assert.False(t, m.ctrl.Busy())
	assert.Equal(t, "hello", m.input.Value())
	toasts := m.toasts.Toasts()
	require.NotEmpty(t, toasts)
	assert.Equal(t, "rate limited", toasts[0].Message)
}

func TestSendCmdRecoversPanics(t *testing.T) {
	m, _ := openModel(t, &fakeSender{panics: true})
	req, err := m.ctrl.Prepare("hi")
	require.NoError(t, err)

	msg := sendCmd(context.Background(), m.ctrl, req, "hi")()
	done, ok := msg.(sendDoneMsg)
	require.True(t, ok)
	assert.Error(t, done.err)

	m = update(t, m, done)
	assert.False(t, m.ctrl.Busy())
}

func TestInboundFrameRendered(t *testing.T) {
	m, d := openModel(t, &fakeSender{})
	d.last().frames <- `{"sender":"bot","message":"The answer is 42.","type":"stream"}`

	m = pumpOne(t, m)
	assert.Equal(t, 1, m.ctrl.Log().Len())
	view := m.View()
	assert.Contains(t, view, "Assistant")
	assert.Contains(t, view, "42")
}

func TestServerErrorFrameToast(t *testing.T) {
	m, d := openModel(t, &fakeSender{})
	d.last().frames <- `{"sender":"bot","message":"index missing","type":"error"}`

	m = pumpOne(t, m)
	assert.Equal(t, 0, m.ctrl.Log().Len())
	toasts := m.toasts.Toasts()
	require.NotEmpty(t, toasts)
	assert.Equal(t, "index missing", toasts[0].Message)
}

func TestDropShowsErrorAndClosesInput(t *testing.T) {
	m, d := openModel(t, &fakeSender{})
	d.last().Close(websocket.StatusGoingAway, "")

	m = pumpOne(t, m)
	assert.Equal(t, conn.StateClosed, m.ctrl.ConnState())
	assert.False(t, m.input.Enabled())
	toasts := m.toasts.Toasts()
	require.NotEmpty(t, toasts)
	assert.Contains(t, toasts[0].Message, "Connection lost")

	m, _ = command(t, m, "/reconnect")
	assert.Equal(t, conn.StateConnecting, m.ctrl.ConnState())
}

func TestSettingsCommands(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})

	m, _ = command(t, m, "/model gpt-4")
	m, _ = command(t, m, "/temp 70")
	m, _ = command(t, m, "/system Be brief.")
	m, _ = command(t, m, "/sources on")

	s := m.ctrl.Settings()
	assert.Equal(t, "gpt-4", s.Model)
	assert.InDelta(t, 0.7, s.Temperature, 1e-9)
	assert.Equal(t, "Be brief.", s.SystemPrompt)
	assert.True(t, s.Sources)

	m, _ = command(t, m, "/temp 500")
	assert.InDelta(t, 0.7, m.ctrl.Settings().Temperature, 1e-9)
	assert.Empty(t, m.input.Value())
}

func TestSessionCommands(t *testing.T) {
	m, _ := newTestModel(t, endpoint.Params{}, &fakeSender{})

	m, _ = command(t, m, "/session new")
	id := m.ctrl.Params().SessionID
	assert.Len(t, id, 36)

	m, _ = command(t, m, "/proxy on")
	assert.NotEqual(t, conn.StateConnecting, m.ctrl.ConnState())

	m, _ = command(t, m, "/path docs/guide.pdf")
	assert.Equal(t, conn.StateConnecting, m.ctrl.ConnState())
	assert.Equal(t, "docs/guide.pdf", m.ctrl.Params().FilePath)
	assert.True(t, m.ctrl.Params().ProxyEnabled)
}

func TestUnknownCommand(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})
	m, _ = command(t, m, "/frobnicate")
	toasts := m.toasts.Toasts()
	require.NotEmpty(t, toasts)
	assert.Contains(t, toasts[0].Message, "Unknown command")
}

func TestHelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})
	m, _ = command(t, m, "/help")
	require.True(t, m.showHelp)
	assert.Contains(t, m.View(), "/export")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
}

func TestExportCommand(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})
	m.ctrl.Log().Append(model.ClientTurn("q"))
	m.ctrl.Log().Append(model.AssistantTurn("a"))

	path := filepath.Join(t.TempDir(), "chat.json")
	m, cmd := command(t, m, "/export json "+path)
	require.NotNil(t, cmd)

	// The batch carries the export; run the export directly.
	msg := handleExportCommand(&m, []string{"json", path})()
	done, ok := msg.(exportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, path, done.path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session": "s1"`)
}

func TestNewChatCommand(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})
	m.ctrl.Log().Append(model.ClientTurn("q"))

	m, _ = command(t, m, "/new")
	assert.Equal(t, 0, m.ctrl.Log().Len())
	assert.Contains(t, m.View(), "docchat")
}

func TestConfigReload(t *testing.T) {
	m, _ := newTestModel(t, completeParams, &fakeSender{})

	cfg := config.Default()
	cfg.Chat.Model = "claude"
	cfg.Session.ID = "s2"
	cfg.Session.Bucket = "b"
	cfg.Session.Path = "doc.pdf"
	m = update(t, m, configReloadedMsg{cfg: cfg})

	assert.Equal(t, "claude", m.ctrl.Settings().Model)
	assert.Equal(t, "s2", m.ctrl.Params().SessionID)
	assert.Equal(t, conn.StateConnecting, m.ctrl.ConnState())

	bad := config.Default()
	bad.Chat.Model = ""
	m = update(t, m, configReloadedMsg{cfg: bad})
	assert.Equal(t, "claude", m.ctrl.Settings().Model)
}
