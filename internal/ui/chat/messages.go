// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/export"
	"github.com/jeranaias/docchat-tui/internal/session"
)

// =============================================================================
// TRANSPORT MESSAGES
// =============================================================================

// connEventMsg carries one transport event to the loop.
type connEventMsg struct {
	ev conn.Event
}

// eventsDoneMsg is sent when the event wait was cancelled.
type eventsDoneMsg struct {
	err error
}

// startedMsg reports the result of the initial connect.
type startedMsg struct {
	err error
}

// waitForEvent blocks off-loop until the next transport event.
func waitForEvent(ctx context.Context, ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		ev, err := ctrl.Next(ctx)
		if err != nil {
			return eventsDoneMsg{err: err}
		}
		return connEventMsg{ev: ev}
	}
}

func startCmd(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start()}
	}
}

// =============================================================================
// SEND MESSAGES
// =============================================================================

// sendDoneMsg reports the outcome of a send. text is the raw input that was
// submitted.
type sendDoneMsg struct {
	text string
	err  error
}

// sendCmd performs the request/response call off-loop. A panic in the
// sender is reported as a failed send so the busy flag is still cleared.
func sendCmd(ctx context.Context, ctrl *session.Controller, req api.SendRequest, text string) tea.Cmd {
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = sendDoneMsg{text: text, err: fmt.Errorf("send failed: %v", r)}
			}
		}()
		return sendDoneMsg{text: text, err: ctrl.Send(ctx, req)}
	}
}

// =============================================================================
// CONFIG AND EXPORT MESSAGES
// =============================================================================

// configReloadedMsg delivers a configuration reloaded from disk.
type configReloadedMsg struct {
	cfg *config.Config
}

func watchConfig(changes <-chan *config.Config) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-changes
		if !ok {
			return nil
		}
		return configReloadedMsg{cfg: cfg}
	}
}

// exportDoneMsg reports a finished export.
type exportDoneMsg struct {
	path string
	err  error
}

func exportCmd(t *export.Transcript, exporter export.Exporter, opts *export.Options) tea.Cmd {
	return func() tea.Msg {
		path, err := export.ToFile(t, exporter, opts)
		return exportDoneMsg{path: path, err: err}
	}
}
