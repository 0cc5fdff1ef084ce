// Package logging builds the structured logger cmd/indexd hands to every
// subsystem (catalog, orchestrator, watcher, lockkv all take a
// *slog.Logger). Grounded on the sibling example's daemon logger
// (cmd/bd/daemon_logger.go): lumberjack-rotated file output, optional JSON
// format, level parsed from a string flag/env var.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// FilePath, if non-empty, writes rotated logs there in addition to
	// stderr. Empty means stderr only (foreground/CLI use).
	FilePath   string
	JSON       bool
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultOptions mirrors the rotation defaults the sibling example ships.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		MaxSizeMB:  50,
		MaxBackups: 7,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// New builds a *slog.Logger and, if a file path was configured, the
// lumberjack.Logger backing it (so the caller can Close it on shutdown).
func New(opts Options) (*slog.Logger, *lumberjack.Logger) {
	var w io.Writer = os.Stderr
	var lj *lumberjack.Logger
	if opts.FilePath != "" {
		lj = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 7),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   opts.Compress,
		}
		w = io.MultiWriter(os.Stderr, lj)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), lj
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
