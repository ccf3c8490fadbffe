// Package obs wires structured logging, Prometheus metrics and tracing.
package obs

import (
	"io"
	"log/slog"
	"os"

	"github.com/ariefcatur/go-catalog-sync/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. When a log file is configured the
// output goes to stdout and a rotated file.
func NewLogger(cfg config.Logging, service string) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		})
	}
	return newLogger(out, cfg.Format, cfg.Level).With("service", service)
}

func newLogger(out io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch s {
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

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
