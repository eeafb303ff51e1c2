// Package logging configures structured logging for the service.
//
// Two formats are supported: colored text through tint (default) and JSON
// for log shippers. The level is one of debug, info, warn, error.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the log handler
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Setup builds a logger writing to stderr and installs it as the slog default
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level), Format(strings.ToLower(format)))
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					if t, ok := a.Value.Any().(time.Time); ok {
						a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
					}
				}
				return a
			},
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
