// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCmd(global),
		newConfigGetCmd(global),
		newConfigSetCmd(global),
		newConfigPathCmd(global),
		newConfigInitCmd(global),
		newConfigKeysCmd(),
	)
	return cmd
}

func newConfigShowCmd(global *globalOptions) *cobra.Command {
	var asTOML bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := global.load()
			if err != nil {
				return err
			}
			global.overrides(cmd.Flags())(cfg)
			out := cmd.OutOrStdout()
			if !asTOML {
				fmt.Fprintln(out, cfg.String())
				return nil
			}
			safe := cfg.Clone()
			if safe.Server.APIKey != "" {
				safe.Server.APIKey = "[REDACTED]"
			}
			return toml.NewEncoder(out).Encode(safe)
		},
	}
	cmd.Flags().BoolVar(&asTOML, "toml", false, "print as TOML instead of JSON")
	return cmd
}

func newConfigGetCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := global.load()
			if err != nil {
				return err
			}
			global.overrides(cmd.Flags())(cfg)
			v, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}
			if strings.EqualFold(args[0], "server.api_key") && v != "" {
				v = "[REDACTED]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

// readFileConfig decodes only the file, without environment overrides,
// so that writing it back does not persist the environment.
func readFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err := config.LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func newConfigSetCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.resolvePath()
			if err != nil {
				return err
			}
			cfg, err := readFileConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Msg: err.Error()}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], path)
			return nil
		},
	}
}

func newConfigPathCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.resolvePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCmd(global *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.resolvePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the configuration keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.GetAllKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}
