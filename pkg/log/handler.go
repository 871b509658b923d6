package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// stackHandler adds the stack captured by cockroachdb/errors to every slog
// record carrying an ErrAttrKey attribute.
type stackHandler struct {
	slog.Handler
}

func withStack(h slog.Handler) slog.Handler {
	return stackHandler{Handler: h}
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	var st string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != ErrAttrKey {
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			st = stackOf(err)
		}
		return false
	})
	if st != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	return h.Handler.Handle(ctx, r)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stackHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{Handler: h.Handler.WithGroup(name)}
}

// stackOf returns the first safe detail of err, which for errors built by
// cockroachdb/errors is the stack at the point of creation.
func stackOf(err error) string {
	if d := errors.GetSafeDetails(err).SafeDetails; len(d) > 0 {
		return d[0]
	}
	return ""
}
