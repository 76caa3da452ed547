package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the structured logger used across the pipeline. It writes
// to stderr so that JSON reports on stdout stay clean.
func NewLogger(verbose bool) *slog.Logger {
	return NewLoggerTo(os.Stderr, verbose)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// VerboseLogger prints human-oriented progress lines when verbose mode is on
type VerboseLogger struct {
	verbose bool
	out     io.Writer
}

// NewVerboseLogger creates a new verbose logger writing to stderr
func NewVerboseLogger(verbose bool) *VerboseLogger {
	return &VerboseLogger{verbose: verbose, out: os.Stderr}
}

// Logf logs a formatted message if verbose mode is enabled
func (v *VerboseLogger) Logf(format string, args ...interface{}) {
	if v.verbose {
		fmt.Fprintf(v.out, format, args...)
	}
}

// DebugLogf logs a message with a [DEBUG] prefix if verbose mode is enabled
func (v *VerboseLogger) DebugLogf(format string, args ...interface{}) {
	if v.verbose {
		fmt.Fprintf(v.out, "[DEBUG] "+format, args...)
	}
}

// IsVerbose returns whether verbose mode is enabled
func (v *VerboseLogger) IsVerbose() bool {
	return v.verbose
}
