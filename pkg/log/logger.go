package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"

	mlerrors "github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// SetupLogger configures the process-wide provider and the slog default.
//
// "json" and "text" go through log/slog with the error stack handler attached;
// "console" uses zerolog's human readable writer. Warnings raised through
// pkg/errors are redirected to the new logger.
func SetupLogger(level, format string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}

	var provider LoggerProvider
	switch format {
	case FormatJSON, "":
		provider = NewSlogProvider(slog.NewJSONHandler(w, handlerOptions(lvl)), lvl)
	case FormatText:
		provider = NewSlogProvider(slog.NewTextHandler(w, handlerOptions(lvl)), lvl)
	case FormatConsole:
		provider = NewZerologProviderWithWriter(NewConsoleWriter(w), lvl)
	default:
		return errors.Newf("invalid log format: %s", format)
	}

	if sp, ok := provider.(*SlogProvider); ok {
		slog.SetDefault(sp.base)
	}
	SetProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	mlerrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), ErrorTypeKey, warningType(w))
	})
	return nil
}

func handlerOptions(lvl Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: slog.Level(lvl),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	}
}

func warningType(w error) string {
	switch w.(type) {
	case *mlerrors.ConvergenceWarning:
		return "ConvergenceWarning"
	case *mlerrors.UndefinedMetricWarning:
		return "UndefinedMetricWarning"
	default:
		return "Warning"
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SlogProvider implements LoggerProvider on top of log/slog.
type SlogProvider struct {
	base  *slog.Logger
	level *slog.LevelVar
}

// NewSlogProvider wraps handler so error records carry a stacktrace.
func NewSlogProvider(handler slog.Handler, level Level) *SlogProvider {
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	return &SlogProvider{
		base:  slog.New(withStack(&levelHandler{Handler: handler, level: lv})),
		level: lv,
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{l: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: p.base.With(ComponentKey, name)}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

// levelHandler lets SetLevel take effect on loggers that were already handed out.
type levelHandler struct {
	slog.Handler
	level *slog.LevelVar
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }

func (s *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	s.l.Error(msg, fields...)
}

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}
