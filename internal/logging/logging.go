// Package logging builds the zap logger shared by every command. Console
// output always goes to stderr because stdout carries the MCP transport.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Verbose bool
	// File, when set, receives JSON logs rotated by size.
	File string
	// Console overrides stderr, mainly for tests.
	Console io.Writer
	// Quiet drops console output, e.g. while a full-screen TUI owns the terminal.
	Quiet bool
}

// New returns a logger and a cleanup func that flushes and closes the file sink.
func New(opts Options) (*zap.Logger, func()) {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	var cores []zapcore.Core
	if !opts.Quiet {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(zapcore.AddSync(out)),
			level,
		))
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 5,
				MaxAge:     30, // days
				Compress:   true,
			}
			encCfg := zap.NewProductionEncoderConfig()
			encCfg.TimeKey = "timestamp"
			encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encCfg),
				zapcore.AddSync(rotator),
				level,
			))
		}
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
}
