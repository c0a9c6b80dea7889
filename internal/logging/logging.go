// Package logging builds the slog logger used across statbridge.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"statbridge/internal/config"
)

// New creates a logger for cfg. The returned close function releases the
// log file, if one was opened.
func New(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with console output going to console.
func NewWithWriter(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	var (
		output  io.Writer
		closeFn = noop
	)
	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log file: %w", err)
		}
		closeFn = file.Close
		output = file
		if strings.EqualFold(cfg.Output, "both") {
			output = io.MultiWriter(console, file)
		}
	default:
		output = console
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler), closeFn, nil
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// info.
func ParseLevel(level string) slog.Level {
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

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
