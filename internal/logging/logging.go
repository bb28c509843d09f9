// Package logging wraps log/slog with the fields and messages used across
// recjson's store and command line tool.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with recjson-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// Wrap returns l as a Logger.  A nil l discards everything.
func Wrap(l *slog.Logger) *Logger {
	if l == nil {
		return NoopLogger()
	}
	return &Logger{Logger: l}
}

// NewJSONLogger creates a Logger that writes JSON lines to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// ParseLevel accepts debug, info, warn and error in any case, with an
// optional offset such as "debug-2".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// WithRID adds a record id field.
func (l *Logger) WithRID(rid fmt.Stringer) *Logger {
	return &Logger{Logger: l.Logger.With("rid", rid.String())}
}

// WithFile adds an input file field.
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{Logger: l.Logger.With("file", name)}
}

// WithBackend adds a storage backend field.
func (l *Logger) WithBackend(name string) *Logger {
	return &Logger{Logger: l.Logger.With("backend", name)}
}

// LogCommit logs the end of a transaction commit.
func (l *Logger) LogCommit(written, deleted int, err error) {
	if err != nil {
		l.Debug("commit failed",
			"written", written,
			"deleted", deleted,
			"error", err,
		)
	} else {
		l.Debug("commit completed",
			"written", written,
			"deleted", deleted,
		)
	}
}

// LogRollback logs a transaction rollback.
func (l *Logger) LogRollback(attached int) {
	l.Debug("transaction rolled back", "attached", attached)
}

// LogLinkFailure logs links that kept a transaction from committing.
func (l *Logger) LogLinkFailure(err error) {
	l.Warn("unresolved links", "error", err)
}

// LogImport logs the outcome of importing one file.
func (l *Logger) LogImport(ctx context.Context, file string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "import failed",
			"file", file,
			"records", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "import completed",
			"file", file,
			"records", records,
		)
	}
}
