// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/render"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/ui/components"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctrl     *session.Controller
	cfg      *config.Config
	renderer *render.Renderer
	theme    *styles.Theme
	logger   *zap.Logger
	changes  <-chan *config.Config

	// ctx bounds the event wait and in-flight sends.
	ctx    context.Context
	cancel context.CancelFunc

	// UI components
	header   *components.Header
	viewport *components.ChatViewport
	input    *components.Input
	status   *components.StatusBar
	toasts   *components.ToastManager
	help     help.Model
	keyMap   KeyMap

	width  int
	height int
	wrap   int

	showHelp bool

	// renderedVersion is the log version last pushed into the viewport.
	renderedVersion uint64
	renderedWidth   int
}

// Options wires a Model. Controller and Renderer are required.
type Options struct {
	Controller *session.Controller
	Renderer   *render.Renderer
	// Config is the configuration the controller was built from. It is the
	// base for /set and is replaced on reload.
	Config *config.Config
	// ConfigChanges delivers reloaded configurations. Optional.
	ConfigChanges <-chan *config.Config
	Theme         *styles.Theme
	Logger        *zap.Logger
	// WrapWidth caps the rendered text width. Zero means the window width.
	WrapWidth int
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		ctrl:     opts.Controller,
		cfg:      cfg,
		renderer: opts.Renderer,
		theme:    theme,
		logger:   logger.Named("tui"),
		changes:  opts.ConfigChanges,
		wrap:     opts.WrapWidth,
		ctx:      ctx,
		cancel:   cancel,
		header:   components.NewHeader(theme),
		viewport: components.NewChatViewport(theme),
		input:    components.NewInput(theme),
		status:   components.NewStatusBar(theme),
		toasts:   components.NewToastManager(),
		help:     help.New(),
		keyMap:   DefaultKeyMap(),
	}
	m.help.ShowAll = true
	// Prepare and Complete both run on the update loop.
	m.ctrl.OnBusyChange(m.status.SetBusy)
	m.syncChrome()
	return m
}

// Init connects and starts the background loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		startCmd(m.ctrl),
		waitForEvent(m.ctx, m.ctrl),
		watchConfig(m.changes),
		m.header.Tick(),
		components.ToastTickCmd(),
		textarea.Blink,
	)
}

// Controller returns the session controller behind the view.
func (m Model) Controller() *session.Controller {
	return m.ctrl
}

// Close stops the event wait. The controller is shut down by its owner.
func (m Model) Close() {
	m.cancel()
}

// =============================================================================
// STATE SYNC
// =============================================================================

// syncChrome pushes the derived UI state into the header, input and status
// bar. It returns a command when the spinner needs to start again.
func (m *Model) syncChrome() tea.Cmd {
	ui := m.ctrl.UIState()
	state := m.ctrl.ConnState()
	wasLoading := m.header.Loading
	loading := state != conn.StateOpen
	m.header.Set(ui.Header, loading)

	cmds := []tea.Cmd{m.input.SetEnabled(ui.InputEnabled)}
	if loading && !wasLoading {
		cmds = append(cmds, m.header.Tick())
	}

	settings := m.ctrl.Settings()
	params := m.ctrl.Params()
	m.status.Info = components.StatusInfo{
		Session:     params.SessionID,
		Model:       settings.Model,
		Temperature: settings.Temperature,
		Proxy:       params.ProxyEnabled,
		Conn:        state,
		Turns:       m.ctrl.Log().Len(),
		Busy:        m.status.Info.Busy,
		Pinned:      m.viewport.Pinned(),
	}
	return tea.Batch(cmds...)
}

// refreshLog re-renders the log into the viewport when it changed. The
// viewport applies the follow policy to the new content.
func (m *Model) refreshLog() {
	log := m.ctrl.Log()
	if log.Version() == m.renderedVersion && m.renderer.Width() == m.renderedWidth {
		return
	}
	m.renderedVersion = log.Version()
	m.renderedWidth = m.renderer.Width()
	m.viewport.SetContent(m.renderer.Turns(log.Snapshot()))
}

// forceRefresh re-renders even when the log is unchanged.
func (m *Model) forceRefresh() {
	m.renderedWidth = -1
	m.refreshLog()
}
