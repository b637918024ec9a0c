package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile configures an optional rotating log file written alongside stdout.
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewLogger returns a slog.Logger configured for the desired verbosity and format.
func NewLogger(level string, json bool) *slog.Logger {
	return NewLoggerTo(os.Stdout, level, json)
}

// NewLoggerTo builds a logger writing to w.
func NewLoggerTo(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// LogWriter returns stdout, teed into a lumberjack rotator when a file path is set.
// The returned closer must be called on shutdown; it is a no-op without a file.
func LogWriter(file LogFile) (io.Writer, func() error) {
	if strings.TrimSpace(file.Path) == "" {
		return os.Stdout, func() error { return nil }
	}
	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	}
	return io.MultiWriter(os.Stdout, rotator), rotator.Close
}

// ParseLevel maps a textual level onto slog levels, defaulting to info.
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

// DiscardLogger is handy for tests and nil-safe constructors.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
