// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	session    string
	newSession bool
	bucket     string
	path       string
	proxy      bool
	model      string
	wsURL      string
	apiURL     string
	debug      bool
}

func (o *globalOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "config file (default ~/.docchat/config.toml)")
	fs.StringVar(&o.session, "session", "", "session id")
	fs.BoolVar(&o.newSession, "new-session", false, "start with a fresh random session id")
	fs.StringVar(&o.bucket, "bucket", "", "storage bucket holding the document")
	fs.StringVar(&o.path, "path", "", "document path inside the bucket")
	fs.BoolVar(&o.proxy, "proxy", false, "connect through the session proxy")
	fs.StringVar(&o.model, "model", "", "model used for answers")
	fs.StringVar(&o.wsURL, "ws-url", "", "streaming base URL (ws:// or wss://)")
	fs.StringVar(&o.apiURL, "api-url", "", "send base URL (http:// or https://)")
	fs.BoolVar(&o.debug, "debug", false, "debug logging")
}

// resolvePath returns the config file path in effect.
func (o *globalOptions) resolvePath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPathTOML()
}

// overrides returns a function applying the command-line flags to a
// configuration. It is reused for configurations reloaded from disk, so a
// generated session id stays the same across reloads.
func (o *globalOptions) overrides(fs *pflag.FlagSet) func(*config.Config) {
	session := o.session
	sessionSet := fs.Changed("session")
	if o.newSession {
		session = uuid.NewString()
		sessionSet = true
	}
	return func(cfg *config.Config) {
		if sessionSet {
			cfg.Session.ID = session
		}
		if fs.Changed("bucket") {
			cfg.Session.Bucket = o.bucket
		}
		if fs.Changed("path") {
			cfg.Session.Path = o.path
		}
		if fs.Changed("proxy") {
			cfg.Server.Proxy = o.proxy
		}
		if fs.Changed("model") {
			cfg.Chat.Model = o.model
		}
		if fs.Changed("ws-url") {
			cfg.Server.WSURL = o.wsURL
		}
		if fs.Changed("api-url") {
			cfg.Server.APIURL = o.apiURL
		}
	}
}

// load reads the configuration file. An explicit --config path must exist;
// the default location may be absent.
func (o *globalOptions) load() (*config.Config, string, error) {
	path, err := o.resolvePath()
	if err != nil {
		return nil, "", err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		if o.configPath != "" {
			return nil, "", fmt.Errorf("config file %s: %w", path, statErr)
		}
		cfg, err := config.Load()
		return cfg, path, err
	}
	cfg, err := config.LoadFromPath(path)
	return cfg, path, err
}

// =============================================================================
// COMMAND ENVIRONMENT
// =============================================================================

// env is what a command needs after flag parsing: the effective
// configuration and a logger.
type env struct {
	cfg      *config.Config
	path     string
	logger   *zap.Logger
	override func(*config.Config)
	close    func() error
}

// setup loads config, applies flag overrides and opens the log. console,
// when non-nil, also receives log lines.
func (o *globalOptions) setup(cmd *cobra.Command, console io.Writer) (*env, error) {
	cfg, path, err := o.load()
	if err != nil {
		return nil, err
	}
	override := o.overrides(cmd.Flags())
	override(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Logging, logging.Options{Console: console, Debug: o.debug})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	logger.Debug("config loaded", zap.String("path", path))
	return &env{cfg: cfg, path: path, logger: logger, override: override, close: closeLog}, nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the docchat command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with a document over a streaming question-answering service",
		Long: "docchat connects to a question-answering service, sends questions about a\n" +
			"document and shows the answers as they stream in.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
	opts.register(cmd.PersistentFlags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Msg: err.Error()}
	})

	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docchat %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		DisplayError(cmd.ErrOrStderr(), err)
		return ExitCodeFor(err)
	}
	return ExitSuccess
}
