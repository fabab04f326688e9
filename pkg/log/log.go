package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Emojis for different log types
const (
	infoEmoji    = "ℹ️ "
	successEmoji = "✅ "
	errorEmoji   = "❌ "
	warnEmoji    = "⚠️ "
	stepEmoji    = "👉 "
	debugEmoji   = "🔍 "
	prEmoji      = "🔄 "
	gitEmoji     = "📦 "
	branchEmoji  = "🌿 "
	diffEmoji    = "📝 "
	loadEmoji    = "⏳ "
)

// Options configures a Logger.
type Options struct {
	Debug  bool
	JSON   bool
	Output io.Writer
}

// Logger wraps a clog logger with the event helpers used across gitfix.
// Text output is prefixed with an emoji per event kind; JSON output carries
// the kind as an "event" attribute instead.
type Logger struct {
	base   *clog.Logger
	debug  bool
	pretty bool
}

// New creates a text logger writing to stderr
func New(debug bool) *Logger {
	return NewWithOptions(Options{Debug: debug})
}

// NewWithOptions creates a logger from explicit options
func NewWithOptions(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}

	return &Logger{
		base:   clog.New(h),
		debug:  opts.Debug,
		pretty: !opts.JSON,
	}
}

// With returns a child logger carrying the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...), debug: l.debug, pretty: l.pretty}
}

// Clog exposes the underlying clog logger
func (l *Logger) Clog() *clog.Logger {
	return l.base
}

// WithContext stores the logger in ctx so clog.FromContext finds it.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return clog.WithLogger(ctx, l.base)
}

// FromContext returns a Logger bound to the clog logger stored in ctx,
// keeping the debug and format settings of fallback.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	return &Logger{base: clog.FromContext(ctx), debug: fallback.debug, pretty: fallback.pretty}
}

// formatMessage trims trailing whitespace and collapses blank lines
func formatMessage(msg string) string {
	lines := strings.Split(strings.TrimRight(msg, " \n\t"), "\n")
	formatted := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		formatted = append(formatted, strings.TrimRight(line, " \t"))
	}
	return strings.Join(formatted, "\n")
}

func (l *Logger) emit(level slog.Level, emoji, event, format string, args ...interface{}) {
	msg := formatMessage(fmt.Sprintf(format, args...))
	if l.pretty {
		msg = emoji + msg
	}
	logger := l.base.With("event", event)
	switch level {
	case slog.LevelDebug:
		logger.Debug(msg)
	case slog.LevelWarn:
		logger.Warn(msg)
	case slog.LevelError:
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, infoEmoji, "info", format, args...)
}

// Success logs a success message
func (l *Logger) Success(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, successEmoji, "success", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(slog.LevelError, errorEmoji, "error", format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, warnEmoji, "warning", format, args...)
}

// Step logs a pipeline step
func (l *Logger) Step(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, stepEmoji, "step", format, args...)
}

// Loading logs the start of a long-running operation
func (l *Logger) Loading(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, loadEmoji, "loading", format, args...)
}

// Debug logs a message if debug is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit(slog.LevelDebug, debugEmoji, "debug", format, args...)
}

// PR logs a PR-related message
func (l *Logger) PR(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, prEmoji, "pr", format, args...)
}

// Git logs a git-object message
func (l *Logger) Git(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, gitEmoji, "git", format, args...)
}

// Branch logs a branch-related message
func (l *Logger) Branch(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, branchEmoji, "branch", format, args...)
}

// Diff logs a diff-related message
func (l *Logger) Diff(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, diffEmoji, "diff", format, args...)
}

// IsDebug returns whether debug logging is enabled
func (l *Logger) IsDebug() bool {
	return l.debug
}
