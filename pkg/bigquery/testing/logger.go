package bqtesting

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a logger for tests, writing to stderr. Verbosity is
// driven by the DEBUG environment variable: "1" enables info, "2" enables
// debug, anything else shows errors only so passing runs stay quiet.
func NewLogger() *slog.Logger {
	return NewLoggerTo(os.Stderr)
}

// NewLoggerTo is NewLogger with the destination under the caller's control.
func NewLoggerTo(w io.Writer) *slog.Logger {
	level := slog.LevelError
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
