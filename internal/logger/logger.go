// Package logger wraps log/slog the way the teacher's internal logger
// does: a small functional-options constructor producing one Logger
// used both for the daemon's own lifecycle messages and for
// per-Action scoped child loggers (see internal/agent/logger.go and
// app/app.go's logger.NewSlogLogger provider in the teacher repo).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the agent-wide logging handle. It is a thin wrapper
// around *slog.Logger so call sites read like structured logging
// everywhere else in the codebase (Info/Warn/Error/Debug with
// key-value pairs) while still letting us fan out to a log file.
type Logger struct {
	*slog.Logger
}

// Option configures a Logger at construction time.
type Option func(*options)

type options struct {
	debug   bool
	quiet   bool
	logFile io.Writer
}

// WithDebug enables debug-level logging.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithQuiet suppresses console output (the file sink, if any, still receives records).
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// WithLogFile adds w as an additional sink, fanned out alongside the console.
func WithLogFile(w io.Writer) Option { return func(o *options) { o.logFile = w } }

// New builds a Logger from the given options.
func New(opts ...Option) Logger {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	if !o.quiet {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	if o.logFile != nil {
		handlers = append(handlers, slog.NewJSONHandler(o.logFile, &slog.HandlerOptions{Level: level}))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
	case 1:
		handler = handlers[0]
	default:
		handler = slogmulti.Fanout(handlers...)
	}

	return Logger{Logger: slog.New(handler)}
}

// With returns a Logger scoped with the given key-value attributes.
// The runner does not use it; it passes action= attributes on each
// log call instead.
func (l Logger) With(args ...any) Logger {
	return Logger{Logger: l.Logger.With(args...)}
}

// Scoped returns a context carrying this Logger for handlers that
// accept only a context.Context.
func (l Logger) Scoped(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

type loggerKey struct{}

// FromContext retrieves a Logger stashed by Scoped, or a discard Logger if none was set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return New(WithQuiet())
}
