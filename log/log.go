// Package log provides scoped structured logging on top of zerolog.
package log

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

//nolint:gochecknoglobals
var global = Logger{lg: zerolog.New(os.Stderr).With().Timestamp().Logger()}

// InitGlobals configures the global logger and returns it.
func InitGlobals(level zerolog.Level, json, noColor bool) Logger {
	var lg zerolog.Logger

	if json {
		lg = zerolog.New(os.Stderr)
	} else {
		lg = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		})
	}

	global = Logger{lg: lg.Level(level).With().Timestamp().Logger()}

	return global
}

// Logger is a scoped logger.
type Logger struct {
	lg zerolog.Logger
}

// New returns a logger with the given scope attached to each record.
func New(scope string) Logger {
	return Logger{lg: global.lg.With().Str("s", scope).Logger()}
}

// Ctx returns the logger stored in ctx, or the global logger.
func Ctx(ctx context.Context) Logger {
	return Logger{lg: *zerolog.Ctx(ctx)}
}

// WithContext stores the logger in ctx.
func (l Logger) WithContext(ctx context.Context) context.Context {
	return l.lg.WithContext(ctx)
}

// Attr is a log record attribute.
type Attr struct {
	key string
	val any
}

// Field makes a generic attribute.
func Field(key string, val any) Attr { return Attr{key: key, val: val} }

// Int64 makes an int64 attribute.
func Int64(key string, val int64) Attr { return Attr{key: key, val: val} }

// Coll makes a collection name attribute.
func Coll(name string) Attr { return Attr{key: "coll", val: name} }

// Count makes a document count attribute.
func Count(val int64) Attr { return Attr{key: "count", val: val} }

// Size makes a byte size attribute.
func Size(val uint64) Attr { return Attr{key: "size", val: val} }

// Elapsed makes an elapsed duration attribute.
func Elapsed(dur time.Duration) Attr { return Attr{key: "elapsed", val: dur} }

// Op makes an operation type attribute.
func Op(op string) Attr { return Attr{key: "op", val: op} }

// With returns a logger with the attributes attached to each record.
func (l Logger) With(attrs ...Attr) Logger {
	c := l.lg.With()
	for _, a := range attrs {
		c = c.Interface(a.key, a.val)
	}

	return Logger{lg: c.Logger()}
}

func (l Logger) Trace(msg string) { l.lg.Trace().Msg(msg) }

func (l Logger) Tracef(format string, vals ...any) { l.lg.Trace().Msgf(format, vals...) }

func (l Logger) Debug(msg string) { l.lg.Debug().Msg(msg) }

func (l Logger) Debugf(format string, vals ...any) { l.lg.Debug().Msgf(format, vals...) }

func (l Logger) Info(msg string) { l.lg.Info().Msg(msg) }

func (l Logger) Infof(format string, vals ...any) { l.lg.Info().Msgf(format, vals...) }

// InfoWith logs msg at the info level with extra attributes.
func (l Logger) InfoWith(msg string, attrs ...Attr) { l.With(attrs...).Info(msg) }

func (l Logger) Warn(msg string) { l.lg.Warn().Msg(msg) }

func (l Logger) Warnf(format string, vals ...any) { l.lg.Warn().Msgf(format, vals...) }

func (l Logger) Error(err error, msg string) { l.lg.Error().Err(err).Msg(msg) }

func (l Logger) Errorf(err error, format string, vals ...any) {
	l.lg.Error().Err(err).Msgf(format, vals...)
}
