// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/render"
	"github.com/jeranaias/docchat-tui/internal/session"
)

type askOptions struct {
	connectTimeout time.Duration
	firstTimeout   time.Duration
	idleTimeout    time.Duration
	raw            bool
}

func newAskCmd(global *globalOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one question and print the answer",
		Long: "Sends a question, waits for the streamed answer and prints it as markdown.\n" +
			"With no arguments the question is read from stdin.",
		Example: "  docchat ask \"What does section 3 say about retention?\"\n" +
			"  echo \"Summarize the document\" | docchat ask --raw",
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := questionFrom(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runAsk(cmd, global, opts, question)
		},
	}
	cmd.Flags().DurationVar(&opts.connectTimeout, "connect-timeout", 15*time.Second, "time allowed to open the stream")
	cmd.Flags().DurationVar(&opts.firstTimeout, "timeout", 60*time.Second, "time allowed for the answer to start")
	cmd.Flags().DurationVar(&opts.idleTimeout, "idle", 5*time.Second, "quiet period that ends an answer without an end frame")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

// questionFrom joins args, or reads stdin when there are none and stdin is
// not a terminal.
func questionFrom(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && IsTTY() {
		return "", usageErrorf("no question given")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read question: %w", err)
	}
	q := strings.TrimSpace(string(data))
	if q == "" {
		return "", usageErrorf("no question given")
	}
	return q, nil
}

func runAsk(cmd *cobra.Command, global *globalOptions, opts *askOptions, question string) error {
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

	ctx := cmd.Context()
	if err := ctrl.Start(); err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, opts.connectTimeout)
	err = awaitOpen(openCtx, ctrl)
	cancel()
	if err != nil {
		return err
	}

	if err := ctrl.Submit(ctx, question); err != nil {
		return err
	}
	err = collectAnswer(ctx, ctrl, answerTimeouts{first: opts.firstTimeout, idle: opts.idleTimeout}, nil)
	if err != nil {
		return err
	}

	answer := answerSince(ctrl.Log().Snapshot())
	out := cmd.OutOrStdout()
	if opts.raw || !IsStdoutTTY() {
		fmt.Fprintln(out, answer)
		return nil
	}
	r, err := render.New(render.Options{
		Theme:     e.cfg.UI.Theme,
		CodeStyle: e.cfg.UI.CodeStyle,
		Width:     min(GetTerminalWidth(), e.cfg.UI.WordWrap),
		Logger:    e.logger,
	})
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	fmt.Fprintln(out, r.Markdown(answer))
	return nil
}
