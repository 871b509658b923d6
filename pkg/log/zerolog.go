package log

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ZerologProvider implements LoggerProvider on top of zerolog.
type ZerologProvider struct {
	base  zerolog.Logger
	level atomic.Int32
}

// NewZerologProvider returns a provider writing JSON lines to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter returns a provider writing to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	p := &ZerologProvider{
		base: zerolog.New(w).With().Timestamp().Logger(),
	}
	p.level.Store(int32(level))
	return p
}

// NewConsoleWriter returns a human readable zerolog writer.
func NewConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{provider: p, l: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{provider: p, l: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int32(level))
}

func (p *ZerologProvider) currentLevel() Level {
	return Level(p.level.Load())
}

type zerologLogger struct {
	provider *ZerologProvider
	l        zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, fields ...any) {
	z.emit(LevelDebug, msg, fields)
}

func (z *zerologLogger) Info(msg string, fields ...any) {
	z.emit(LevelInfo, msg, fields)
}

func (z *zerologLogger) Warn(msg string, fields ...any) {
	z.emit(LevelWarn, msg, fields)
}

func (z *zerologLogger) Error(msg string, fields ...any) {
	z.emit(LevelError, msg, fields)
}

func (z *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{provider: z.provider, l: z.l.With().Fields(fields).Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= z.provider.currentLevel()
}

func (z *zerologLogger) emit(level Level, msg string, fields []any) {
	if level < z.provider.currentLevel() {
		return
	}

	var e *zerolog.Event
	switch level {
	case LevelDebug:
		e = z.l.Debug()
	case LevelInfo:
		e = z.l.Info()
	case LevelWarn:
		e = z.l.Warn()
	default:
		e = z.l.Error()
	}

	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.Err(err)
			if st := stackOf(err); st != "" {
				e = e.Str(StacktraceAttrKey, st)
			}
			if obj, ok := err.(zerolog.LogObjectMarshaler); ok {
				e = e.Object("detail", obj)
			}
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}
