package fiberloop

import (
	"context"
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is fiberloop's structured logging facade. It wraps a
// github.com/joeycumines/logiface logger bound to a log/slog handler,
// mirroring the source's use of slog/slog-term for a root logger that
// per-loop child loggers are derived from via With.
type Logger struct {
	l *logiface.Logger[*islog.Event]
}

// NewLogger builds a root Logger that writes to handler at the given
// minimum level. A nil handler defaults to a text handler over os.Stderr,
// matching the source's TermDecorator default.
func NewLogger(handler slog.Handler, level logiface.Level) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{
		l: logiface.New[*islog.Event](
			islog.NewLogger(handler),
			logiface.WithLevel[*islog.Event](level),
		),
	}
}

// NewNoopLogger returns a Logger that discards everything, for use when the
// caller hasn't configured logging (e.g. in tests).
func NewNoopLogger() *Logger {
	return NewLogger(discardHandler{}, logiface.LevelEmergency)
}

// With returns a child Logger carrying the given integer field; NewLoop uses
// it for the loop id, the Go equivalent of the source's
// `log.new(o!("loop-id" => id))`.
func (l *Logger) With(key string, value int) *Logger {
	if l == nil || l.l == nil {
		return l
	}
	ctx := l.l.Clone()
	if ctx == nil {
		return l
	}
	sub := ctx.Int(key, value).Logger()
	if sub == nil {
		return l
	}
	return &Logger{l: sub}
}

func (l *Logger) trace() *logiface.Builder[*islog.Event] { return l.l.Trace() }
func (l *Logger) debug() *logiface.Builder[*islog.Event] { return l.l.Debug() }
func (l *Logger) errb() *logiface.Builder[*islog.Event]  { return l.l.Err() }

// Tracef logs a trace-level message with optional structured fields.
func (l *Logger) Tracef(msg string, kv ...KV) { logWithFields(l.trace(), msg, kv) }

// Debugf logs a debug-level message with optional structured fields.
func (l *Logger) Debugf(msg string, kv ...KV) { logWithFields(l.debug(), msg, kv) }

// Errorf logs an error-level message with optional structured fields.
func (l *Logger) Errorf(err error, msg string, kv ...KV) {
	b := l.errb()
	if err != nil {
		b = b.Err(err)
	}
	logWithFields(b, msg, kv)
}

// KV is a single structured logging field, built with Field.
type KV struct {
	Key   string
	Value any
}

// Field constructs a KV pair for use with Logger's *f methods.
func Field(key string, value any) KV { return KV{Key: key, Value: value} }

func logWithFields(b *logiface.Builder[*islog.Event], msg string, kv []KV) {
	for _, f := range kv {
		b = b.Any(f.Key, f.Value)
	}
	b.Log(msg)
}

// discardHandler is a slog.Handler that drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool            { return false }
func (discardHandler) Handle(context.Context, slog.Record) error          { return nil }
func (h discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler         { return h }
func (h discardHandler) WithGroup(name string) slog.Handler               { return h }
