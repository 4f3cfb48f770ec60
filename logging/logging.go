// Package logging builds the process logger.
// The terminal UI owns stdout, so the globe writes to a rotating file or nowhere.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lixenwraith/world-mood/config"
)

const (
	DefaultDir  = "logs"
	DefaultFile = "world-mood.log"
)

// New creates a *slog.Logger writing to w and sets it as the default logger.
// Format "json" produces structured JSON, anything else human-readable text with source info.
// Level is one of: debug, info, warn, error (case-insensitive); defaults to info.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: !strings.EqualFold(cfg.Format, "json"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// NewFile returns a logger for the terminal UI and a closer for its output.
// An empty cfg.File discards everything; otherwise output is rotated by lumberjack.
func NewFile(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return New(cfg, io.Discard), io.NopCloser(nil), nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}

	rot := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return New(cfg, rot), rot, nil
}

// Discard is a logger that drops everything, for tests and optional dependencies.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
