// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/render"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent history for the REPL.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) prompt(p string) (string, error) {
	s, err := r.line.Prompt(p)
	if err == nil && strings.TrimSpace(s) != "" {
		r.line.AppendHistory(s)
	}
	return s, err
}

func (r *lineReader) close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.Create(r.historyFile); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

type chatOptions struct {
	firstTimeout time.Duration
	idleTimeout  time.Duration
}

func newChatCmd(global *globalOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a line-oriented chat session",
		Long: "Starts an interactive prompt. Answers are printed as they stream in.\n" +
			"Type /help for commands, Ctrl+D to exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, global, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.firstTimeout, "timeout", 60*time.Second, "time allowed for an answer to start")
	cmd.Flags().DurationVar(&opts.idleTimeout, "idle", 5*time.Second, "quiet period that ends an answer without an end frame")
	return cmd
}

// replPrinter prints transport updates as lines.
type replPrinter struct {
	out       io.Writer
	renderer  *render.Renderer
	streaming bool
}

func (p *replPrinter) handle(up conn.Update) {
	if up.StateChanged {
		switch up.State {
		case conn.StateOpen:
			okColor.Fprintln(p.out, "connected")
		case conn.StateClosed:
			p.endLine()
			if up.Err != nil {
				failColor.Fprintf(p.out, "connection lost: %v\n", up.Err)
			}
		}
	}
	if up.ServerError != "" {
		p.endLine()
		failColor.Fprintln(p.out, up.ServerError)
	}
	if up.Frame == nil {
		return
	}
	switch up.Frame.Kind {
	case conn.FrameStart:
		p.endLine()
		fmt.Fprint(p.out, AssistantStyle.Render(render.Label(model.RoleAssistant))+" ")
		p.streaming = true
	case conn.FrameContent:
		if p.streaming {
			fmt.Fprint(p.out, up.Frame.Content)
			return
		}
		fmt.Fprintln(p.out, AssistantStyle.Render(render.Label(model.RoleAssistant))+" "+up.Frame.Content)
	case conn.FrameEnd:
		p.endLine()
	}
}

func (p *replPrinter) endLine() {
	if p.streaming {
		fmt.Fprintln(p.out)
		p.streaming = false
	}
}

func runChat(cmd *cobra.Command, global *globalOptions, opts *chatOptions) error {
	if !IsTTY() {
		return usageErrorf("chat needs a terminal; use 'docchat ask' to pipe a question")
	}
	e, err := global.setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	ctrl, err := session.FromConfig(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()

	out := cmd.OutOrStdout()
	printer := &replPrinter{out: out}
	ctx := cmd.Context()

	fmt.Fprintln(out, TitleStyle.Render("docchat "+Version))
	printSession(out, ctrl)
	if err := ctrl.Start(); err != nil {
		return err
	}

	reader := newLineReader()
	defer reader.close()
	timeouts := answerTimeouts{first: opts.firstTimeout, idle: opts.idleTimeout}

	for {
		drain(ctrl, printer.handle)
		line, err := reader.prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// io.EOF on Ctrl+D
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := replCommand(out, ctrl, line); quit {
				return nil
			}
			continue
		}

		if err := askOnce(ctx, ctrl, line, timeouts, printer); err != nil {
			warnColor.Fprintln(out, err.Error())
		}
	}
}

// askOnce sends one question and prints the streamed answer.
func askOnce(ctx context.Context, ctrl *session.Controller, q string, t answerTimeouts, printer *replPrinter) error {
	if ctrl.ConnState() == conn.StateClosed {
		if err := ctrl.Reconnect(); err != nil {
			return err
		}
	}
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := awaitOpen(openCtx, ctrl)
	cancel()
	if err != nil {
		return err
	}

	if err := ctrl.Submit(ctx, q); err != nil {
		return err
	}
	err = collectAnswer(ctx, ctrl, t, printer.handle)
	printer.endLine()
	return err
}

func printSession(out io.Writer, ctrl *session.Controller) {
	p := ctrl.Params()
	s := ctrl.Settings()
	mode := "direct"
	if p.ProxyEnabled {
		mode = "proxy"
	}
	fmt.Fprintln(out, LabelStyle.Render("session")+ValueStyle.Render(orDash(p.SessionID)))
	fmt.Fprintln(out, LabelStyle.Render("document")+ValueStyle.Render(orDash(p.FilePath)))
	fmt.Fprintln(out, LabelStyle.Render("mode")+ValueStyle.Render(mode))
	fmt.Fprintln(out, LabelStyle.Render("model")+ValueStyle.Render(fmt.Sprintf("%s (temperature %.2f)", s.Model, s.Temperature)))
	if missing := p.Missing(); len(missing) > 0 {
		warnColor.Fprintf(out, "missing %s: set them with /session, /bucket and /path\n", strings.Join(missing, ", "))
	}
	dimColor.Fprintln(out, "Type /help for commands, Ctrl+D to exit.")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// replCommand runs a slash command. It reports true on /quit.
func replCommand(out io.Writer, ctrl *session.Controller, line string) bool {
	parts := strings.Fields(line)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	setParams := func(fn func(*endpoint.Params)) {
		p := ctrl.Params()
		fn(&p)
		if err := ctrl.SetParams(p); err != nil {
			failColor.Fprintln(out, err.Error())
			return
		}
		printSession(out, ctrl)
	}
	settings := func(fn func(*session.Settings)) {
		if err := ctrl.UpdateSettings(fn); err != nil {
			failColor.Fprintln(out, err.Error())
			return
		}
		okColor.Fprintln(out, "ok")
	}

	switch name {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprintln(out, "  /new                 clear the conversation")
		fmt.Fprintln(out, "  /model <name>        model used for answers")
		fmt.Fprintln(out, "  /temp <0-1|0-100>    sampling temperature")
		fmt.Fprintln(out, "  /sources on|off      ask for source references")
		fmt.Fprintln(out, "  /session <id|new>    switch session")
		fmt.Fprintln(out, "  /bucket <name>       storage bucket")
		fmt.Fprintln(out, "  /path <file>         document path")
		fmt.Fprintln(out, "  /proxy on|off        connect through the session proxy")
		fmt.Fprintln(out, "  /quit                exit")
	case "new", "clear":
		ctrl.NewChat()
		okColor.Fprintln(out, "new chat")
	case "model":
		settings(func(s *session.Settings) { s.Model = arg })
	case "temp", "temperature":
		t, err := util.ParseTemperature(arg)
		if err != nil {
			failColor.Fprintln(out, err.Error())
			break
		}
		settings(func(s *session.Settings) { s.Temperature = t })
	case "sources":
		settings(func(s *session.Settings) { s.Sources = util.ParseBool(arg) })
	case "session":
		id := arg
		if id == "" || strings.EqualFold(id, "new") {
			id = uuid.NewString()
		}
		setParams(func(p *endpoint.Params) { p.SessionID = id })
	case "bucket":
		setParams(func(p *endpoint.Params) { p.BucketName = arg })
	case "path":
		setParams(func(p *endpoint.Params) { p.FilePath = arg })
	case "proxy":
		setParams(func(p *endpoint.Params) { p.ProxyEnabled = util.ParseBool(arg) })
	default:
		warnColor.Fprintf(out, "unknown command %s (try /help)\n", parts[0])
	}
	return false
}
