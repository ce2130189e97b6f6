// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across docchat.
//
// The TUI owns the terminal, so logs go to a rotating JSON file by default.
// Commands that run headless (serve) may additionally tee to a console.
package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/docchat-tui/internal/config"
)

// DefaultFileName is the log file name inside the config directory.
const DefaultFileName = "docchat.log"

// Options controls logger construction.
type Options struct {
	// Console, if non-nil, receives human-readable log lines in addition
	// to the file.
	Console io.Writer
	// Debug forces debug level regardless of config.
	Debug bool
}

// New returns a logger writing JSON lines to the rotating file described by
// cfg. The returned close function flushes and closes the file.
func New(cfg config.LoggingConfig, opts Options) (*zap.Logger, func() error, error) {
	path := cfg.Path
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, DefaultFileName)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level),
	}
	if opts.Console != nil {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(zapcore.AddSync(opts.Console)),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closer := func() error {
		_ = logger.Sync()
		return rotator.Close()
	}
	return logger, closer, nil
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
