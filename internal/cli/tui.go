// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/render"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/ui/chat"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// runTUI starts the full-screen chat.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return usageErrorf("the chat UI needs a terminal; use 'docchat ask' or 'docchat chat' instead")
	}

	e, err := opts.setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	ctrl, err := session.FromConfig(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()

	r, err := render.New(render.Options{
		Theme:     e.cfg.UI.Theme,
		CodeStyle: e.cfg.UI.CodeStyle,
		Width:     min(GetTerminalWidth()-2, e.cfg.UI.WordWrap),
		Logger:    e.logger,
	})
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	changes, stop := watchConfig(e)
	defer stop()

	m := chat.New(chat.Options{
		Controller:    ctrl,
		Renderer:      r,
		Config:        e.cfg,
		ConfigChanges: changes,
		Theme:         styles.NewThemeFor(e.cfg.UI.Theme),
		Logger:        e.logger,
		WrapWidth:     e.cfg.UI.WordWrap,
	})
	defer m.Close()

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(cmd.Context())}
	if e.cfg.UI.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}
	return nil
}

// watchConfig forwards reloaded configurations with the command-line
// overrides re-applied. A missing or unwatchable file disables reloading.
func watchConfig(e *env) (<-chan *config.Config, func()) {
	w, err := config.Watch(e.path, 0, e.logger)
	if err != nil {
		e.logger.Info("config reload disabled", zap.String("path", e.path), zap.Error(err))
		return nil, func() {}
	}

	out := make(chan *config.Config, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case cfg := <-w.Changes():
				e.override(cfg)
				if err := cfg.Validate(); err != nil {
					e.logger.Warn("reloaded config rejected", zap.Error(err))
					continue
				}
				select {
				case out <- cfg:
				case <-done:
					return
				}
			}
		}
	}()
	return out, func() {
		close(done)
		_ = w.Close()
	}
}
