// Package logging configures the process-wide slog logger for tracecast.
// Diagnostics always go to stderr: when the stdout artifact sink is active,
// stdout carries one NDJSON artifact record per line and must stay clean of
// log output, so logs switch to JSON on stderr to stay machine-separable.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. stdoutIsArtifactSink selects JSON
// formatting (stderr logs alongside NDJSON artifacts on stdout); otherwise
// logs are text for reading a foreground `serve` session.
func Init(stdoutIsArtifactSink bool, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if stdoutIsArtifactSink {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Component returns a logger tagged with the emitting subsystem, so serve,
// transport, and render lines are separable in aggregated output.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// ParseLevel maps a config string to a slog.Level. Unrecognized values
// (including "") fall back to info rather than failing startup.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
