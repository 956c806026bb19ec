// Package logging builds the process logger and scrubs user-controlled values
// before they are attached to a log record.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

const maxValueLength = 64

// New returns a slog logger writing to w. format is "json" or "text"; level
// is one of debug, info, warn, error and defaults to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops every record. Used by tests and by
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// SafeValue strips control characters that could forge log lines and caps
// the length. Empty input is rendered as "-".
func SafeValue(v string) string {
	if v == "" {
		return "-"
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == '\t' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
	if r := []rune(cleaned); len(r) > maxValueLength {
		cleaned = string(r[:maxValueLength])
	}
	if cleaned == "" {
		return "-"
	}
	return cleaned
}
