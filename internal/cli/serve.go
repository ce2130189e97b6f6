// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/server"
)

type serveOptions struct {
	addr       string
	apiKey     string
	chunkWords int
	chunkDelay time.Duration
	rate       float64
	burst      int
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local development service that echoes questions back",
		Long: "Runs a small question-answering service speaking the same protocol as the\n" +
			"real one. Answers are the question echoed back word by word.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", server.DefaultAddr, "listen address")
	f.StringVar(&opts.apiKey, "api-key", "", "required API key (default server.api_key from config)")
	f.IntVar(&opts.chunkWords, "chunk-words", 3, "words per streamed frame; 0 sends whole answers")
	f.DurationVar(&opts.chunkDelay, "chunk-delay", 50*time.Millisecond, "pause between frames")
	f.Float64Var(&opts.rate, "rate", 1, "sends per second per session; 0 disables limiting")
	f.IntVar(&opts.burst, "burst", 3, "burst allowed above --rate")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	cfg, _, err := global.load()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Logging, logging.Options{Console: os.Stderr, Debug: global.debug})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog()

	apiKey := cfg.Server.APIKey
	if cmd.Flags().Changed("api-key") {
		apiKey = opts.apiKey
	}

	srv := server.New(server.Config{
		Addr:       opts.addr,
		APIKey:     apiKey,
		SendPath:   cfg.Server.SendPath,
		RateLimit:  rate.Limit(opts.rate),
		Burst:      opts.burst,
		ChunkWords: opts.chunkWords,
		ChunkDelay: opts.chunkDelay,
		Answer:     server.EchoAnswer,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render("docchat dev server"))
	infoColor.Fprintf(out, "listening on http://%s (send path %s)\n", opts.addr, cfg.Server.SendPath)
	if apiKey == "" {
		warnColor.Fprintln(out, "no API key set: every request is accepted")
	}
	dimColor.Fprintln(out, "Ctrl+C to stop")

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

