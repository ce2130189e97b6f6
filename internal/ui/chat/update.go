// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/ui/components"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.viewport.Update(msg)
		return m, m.syncChrome()

	case startedMsg:
		if msg.err != nil {
			m.toasts.AddError("Connect failed: " + msg.err.Error())
		}
		return m, m.syncChrome()

	case connEventMsg:
		return m.handleConnEvent(msg)

	case eventsDoneMsg:
		return m, nil

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case configReloadedMsg:
		return m.handleConfigReload(msg)

	case exportDoneMsg:
		if msg.err != nil {
			m.toasts.AddError("Export failed: " + msg.err.Error())
		} else {
			m.toasts.AddSuccess("Exported to " + msg.path)
		}
		return m, nil

	case components.ToastTickMsg:
		m.toasts.Tick(msg.Time)
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		return m, m.header.Update(msg)
	}

	// Cursor blink and other textarea messages.
	return m, m.input.Update(msg)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.header.SetWidth(width)
	m.input.SetWidth(width)
	m.status.SetWidth(width)
	m.help.Width = width

	m.viewport.SetSize(width, m.bodyHeight())
	wrap := width - 2
	if m.wrap > 0 && m.wrap < wrap {
		wrap = m.wrap
	}
	if err := m.renderer.SetWidth(wrap); err != nil {
		m.logger.Warn("renderer resize failed", zap.Error(err))
	}
	m.refreshLog()
}

// bodyHeight is the space left for the message area.
func (m Model) bodyHeight() int {
	fixed := lipgloss.Height(m.header.View()) + m.input.Height() + 1
	return max(3, m.height-fixed)
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m.quit()
	}
	if m.showHelp {
		if key.Matches(msg, m.keyMap.Help, m.keyMap.Dismiss) || msg.Type == tea.KeyEnter {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.Dismiss):
		m.ctrl.DismissSendError()
		m.toasts.Dismiss()
		return m, nil

	case key.Matches(msg, m.keyMap.NewChat):
		cmd := handleNewCommand(&m, nil)
		return m, cmd

	case key.Matches(msg, m.keyMap.Reconnect):
		cmd := handleReconnectCommand(&m, nil)
		return m, cmd

	case key.Matches(msg, m.keyMap.ScrollUp, m.keyMap.ScrollDown,
		m.keyMap.PageUp, m.keyMap.PageDown, m.keyMap.Top, m.keyMap.Bottom):
		m.viewport.Update(msg)
		cmd := m.syncChrome()
		return m, cmd
	}

	cmd := m.input.Update(msg)
	m.ctrl.SetQuestion(m.input.Value())
	return m, tea.Batch(cmd, m.syncChrome())
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

// =============================================================================
// SEND
// =============================================================================

// submit handles Enter. Slash commands run locally; anything else is sent
// when the send control is enabled.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "/") {
		m.input.Reset()
		m.ctrl.SetQuestion("")
		return m.handleCommand(trimmed)
	}

	m.ctrl.SetQuestion(text)
	if !m.ctrl.UIState().CanSend(m.ctrl.Busy()) {
		if m.ctrl.Busy() {
			m.toasts.AddStatus("Still sending the previous question")
		}
		return m, nil
	}

	req, err := m.ctrl.Prepare(text)
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		return m, nil
	case errors.Is(err, session.ErrBusy):
		m.toasts.AddStatus("Still sending the previous question")
		return m, nil
	case err != nil:
		m.toasts.AddError(m.ctrl.SendError())
		return m, nil
	}

	m.refreshLog()
	return m, tea.Batch(sendCmd(m.ctx, m.ctrl, req, text), m.syncChrome())
}

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	m.ctrl.Complete(msg.err)
	if msg.err == nil {
		if m.input.Value() == msg.text {
			m.input.Reset()
		}
	} else {
		m.toasts.AddError(m.ctrl.SendError())
	}
	// The user may have kept typing while the send was in flight.
	m.ctrl.SetQuestion(m.input.Value())
	return m, m.syncChrome()
}

// =============================================================================
// TRANSPORT EVENTS
// =============================================================================

func (m Model) handleConnEvent(msg connEventMsg) (tea.Model, tea.Cmd) {
	next := waitForEvent(m.ctx, m.ctrl)
	up := m.ctrl.Dispatch(msg.ev)
	if up.Stale {
		return m, next
	}

	if up.StateChanged {
		switch up.State {
		case conn.StateOpen:
			m.toasts.AddSuccess("Connected")
		case conn.StateClosed:
			if up.Err != nil {
				m.toasts.AddError("Connection lost: " + errDetail(up.Err) + " (ctrl+r to reconnect)")
			}
		}
	}
	if up.ServerError != "" {
		m.toasts.AddError(up.ServerError)
	}
	if up.Appended {
		m.refreshLog()
	}
	return m, tea.Batch(next, m.syncChrome())
}

func errDetail(err error) string {
	var cerr *conn.ConnectionError
	if errors.As(err, &cerr) && cerr.Err != nil {
		return cerr.Err.Error()
	}
	return err.Error()
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func (m Model) handleConfigReload(msg configReloadedMsg) (tea.Model, tea.Cmd) {
	next := watchConfig(m.changes)
	if err := m.applyConfig(msg.cfg); err != nil {
		m.toasts.AddError(fmt.Sprintf("Config reload rejected: %v", err))
		return m, next
	}
	m.toasts.AddStatus("Configuration reloaded")
	return m, tea.Batch(next, m.syncChrome())
}

// applyConfig adopts cfg for the session and the presentation layer.
func (m *Model) applyConfig(cfg *config.Config) error {
	if err := m.ctrl.ApplyConfig(cfg); err != nil {
		return err
	}
	if cfg.UI.Theme != m.cfg.UI.Theme {
		if err := m.renderer.SetTheme(cfg.UI.Theme); err != nil {
			m.logger.Warn("theme change failed", zap.Error(err))
		}
	}
	m.cfg = cfg
	m.wrap = cfg.UI.WordWrap
	if m.width > 0 {
		m.resize(m.width, m.height)
	}
	m.forceRefresh()
	return nil
}
