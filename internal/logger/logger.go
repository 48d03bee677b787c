// Package logger provides structured logging initialization for the leaderboard
// service. It configures log/slog from LoggingConfig: JSON or text output,
// a minimum level, and stdout, stderr or an append-only file as destination.
// Every record carries the build metadata so logs from several instances can
// be told apart.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"leaderboard/internal/models"
	"leaderboard/internal/version"
)

// Setup builds the process logger from cfg. The returned Closer is non-nil only
// for file output and must be closed by the caller on exit.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	return New(writer, cfg.Format, level, ver), closer, nil
}

// New builds a logger writing to w. Any format other than "json" produces text.
func New(w io.Writer, format string, level slog.Level, ver version.Info) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(ver.LogAttrs()...)
}

// parseLevel accepts slog's level names (debug, info, warn, error) in any
// case, optionally with an offset such as "info+2".
func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", level)
	}
	return l, nil
}

// openWriter resolves the output destination. Only file output has something
// to close; stdout is the fallback for unrecognised outputs.
func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	switch {
	case strings.EqualFold(output, "stderr"):
		return os.Stderr, nil, nil
	case !strings.EqualFold(output, "file"):
		return os.Stdout, nil, nil
	case filePath == "":
		return nil, nil, errors.New("file path is required when output is file")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return f, f, nil
}
