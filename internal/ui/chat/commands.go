// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/export"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m *Model, args []string) tea.Cmd

// commandHelp lists the commands in display order.
var commandHelp = []struct{ usage, desc string }{
	{"/new", "clear the conversation"},
	{"/model <name>", "model used for answers"},
	{"/temp <0-1|0-100>", "sampling temperature"},
	{"/system <prompt>", "system prompt"},
	{"/sources on|off", "ask for source references"},
	{"/session <id|new>", "switch session"},
	{"/bucket <name>", "storage bucket"},
	{"/path <file>", "document path"},
	{"/proxy on|off", "connect through the session proxy"},
	{"/reconnect", "reopen a dropped connection"},
	{"/export [md|json] [file]", "save the conversation"},
	{"/set <key> <value>", "change a config value for this run"},
	{"/help", "show this help"},
	{"/quit", "exit"},
}

// commandHandlers maps command names and aliases to handlers.
var commandHandlers = map[string]CommandHandler{
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,
	"quit": handleQuitCommand,
	"q":    handleQuitCommand,
	"exit": handleQuitCommand,

	"new":   handleNewCommand,
	"clear": handleNewCommand,

	"model":       handleModelCommand,
	"m":           handleModelCommand,
	"temp":        handleTempCommand,
	"temperature": handleTempCommand,
	"system":      handleSystemCommand,
	"sources":     handleSourcesCommand,

	"session":   handleSessionCommand,
	"bucket":    handleBucketCommand,
	"path":      handlePathCommand,
	"proxy":     handleProxyCommand,
	"reconnect": handleReconnectCommand,

	"export": handleExportCommand,
	"e":      handleExportCommand,
	"set":    handleSetCommand,
}

// handleCommand runs a slash command.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	handler, ok := commandHandlers[name]
	if !ok {
		m.toasts.AddError("Unknown command " + parts[0] + " (try /help)")
		return m, nil
	}
	cmd := handler(&m, args)
	return m, tea.Batch(cmd, m.syncChrome())
}

// restOf re-joins arguments that may contain spaces.
func restOf(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// =============================================================================
// META COMMANDS
// =============================================================================

func handleHelpCommand(m *Model, _ []string) tea.Cmd {
	m.showHelp = true
	return nil
}

func handleQuitCommand(m *Model, _ []string) tea.Cmd {
	m.cancel()
	return tea.Quit
}

func handleNewCommand(m *Model, _ []string) tea.Cmd {
	if m.ctrl.NewChat() {
		m.refreshLog()
		m.toasts.AddStatus("Started a new chat")
	}
	return nil
}

// =============================================================================
// SETTINGS COMMANDS
// =============================================================================

func (m *Model) updateSettings(fn func(*session.Settings), done string) {
	if err := m.ctrl.UpdateSettings(fn); err != nil {
		m.toasts.AddError(err.Error())
		return
	}
	m.toasts.AddSuccess(done)
}

func handleModelCommand(m *Model, args []string) tea.Cmd {
	name := restOf(args)
	if name == "" {
		m.toasts.AddStatus("Model: " + m.ctrl.Settings().Model)
		return nil
	}
	m.updateSettings(func(s *session.Settings) { s.Model = name }, "Model set to "+name)
	return nil
}

func handleTempCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.toasts.AddStatus(fmt.Sprintf("Temperature: %.2f", m.ctrl.Settings().Temperature))
		return nil
	}
	t, err := util.ParseTemperature(args[0])
	if err != nil {
		m.toasts.AddError(err.Error())
		return nil
	}
	m.updateSettings(func(s *session.Settings) { s.Temperature = t }, fmt.Sprintf("Temperature set to %.2f", t))
	return nil
}

func handleSystemCommand(m *Model, args []string) tea.Cmd {
	prompt := restOf(args)
	if prompt == "" {
		m.toasts.AddStatus("System prompt: " + m.ctrl.Settings().SystemPrompt)
		return nil
	}
	m.updateSettings(func(s *session.Settings) { s.SystemPrompt = prompt }, "System prompt updated")
	return nil
}

func handleSourcesCommand(m *Model, args []string) tea.Cmd {
	on := !m.ctrl.Settings().Sources
	if len(args) > 0 {
		on = util.ParseBool(args[0])
	}
	state := "off"
	if on {
		state = "on"
	}
	m.updateSettings(func(s *session.Settings) { s.Sources = on }, "Sources "+state)
	return nil
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// setParams applies a parameter change. The controller decides whether
// that reconnects.
func (m *Model) setParams(fn func(*endpoint.Params), done string) {
	p := m.ctrl.Params()
	fn(&p)
	if err := m.ctrl.SetParams(p); err != nil {
		m.toasts.AddError(err.Error())
		return
	}
	if missing := p.Missing(); len(missing) > 0 {
		done += " (still missing: " + strings.Join(missing, ", ") + ")"
	}
	m.toasts.AddStatus(done)
}

func handleSessionCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		id := m.ctrl.Params().SessionID
		if id == "" {
			id = "(none)"
		}
		m.toasts.AddStatus("Session: " + id)
		return nil
	}
	id := args[0]
	if strings.EqualFold(id, "new") {
		id = uuid.NewString()
	}
	m.setParams(func(p *endpoint.Params) { p.SessionID = id }, "Session "+id)
	return nil
}

func handleBucketCommand(m *Model, args []string) tea.Cmd {
	bucket := restOf(args)
	m.setParams(func(p *endpoint.Params) { p.BucketName = bucket }, "Bucket set to "+bucket)
	return nil
}

func handlePathCommand(m *Model, args []string) tea.Cmd {
	path := restOf(args)
	m.setParams(func(p *endpoint.Params) { p.FilePath = path }, "Path set to "+path)
	return nil
}

func handleProxyCommand(m *Model, args []string) tea.Cmd {
	on := !m.ctrl.Params().ProxyEnabled
	if len(args) > 0 {
		on = util.ParseBool(args[0])
	}
	mode := "direct"
	if on {
		mode = "proxy"
	}
	m.setParams(func(p *endpoint.Params) { p.ProxyEnabled = on }, "Connecting in "+mode+" mode")
	return nil
}

func handleReconnectCommand(m *Model, _ []string) tea.Cmd {
	if err := m.ctrl.Reconnect(); err != nil {
		m.toasts.AddError("Reconnect failed: " + err.Error())
	}
	return nil
}

// =============================================================================
// EXPORT AND CONFIG COMMANDS
// =============================================================================

func handleExportCommand(m *Model, args []string) tea.Cmd {
	format := "md"
	opts := export.DefaultOptions()
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		opts.Path = args[1]
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		m.toasts.AddError(err.Error())
		return nil
	}

	turns := m.ctrl.Log().Snapshot()
	if len(turns) == 0 {
		m.toasts.AddStatus("Nothing to export yet")
		return nil
	}
	p := m.ctrl.Params()
	t := export.NewTranscript(export.Meta{
		Session: p.SessionID,
		Bucket:  p.BucketName,
		Path:    p.FilePath,
		Model:   m.ctrl.Settings().Model,
	}, turns)
	return exportCmd(t, exporter, opts)
}

// handleSetCommand changes a config value for this run only.
func handleSetCommand(m *Model, args []string) tea.Cmd {
	if len(args) < 2 {
		m.toasts.AddError("Usage: /set <key> <value>")
		return nil
	}
	cfg := m.cfg.Clone()
	if err := cfg.Set(args[0], restOf(args[1:])); err != nil {
		m.toasts.AddError(err.Error())
		return nil
	}
	if err := cfg.Validate(); err != nil {
		m.toasts.AddError(err.Error())
		return nil
	}
	if err := m.applyConfig(cfg); err != nil {
		m.toasts.AddError(err.Error())
		return nil
	}
	m.toasts.AddSuccess(args[0] + " updated")
	return nil
}
