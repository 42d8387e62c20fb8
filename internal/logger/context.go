package logger

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TraceHook stamps request, trace and span ids taken from the event context.
// Events logged without Ctx are left alone.
func TraceHook() zerolog.HookFunc {
	return func(e *zerolog.Event, _ zerolog.Level, _ string) {
		ctx := e.GetCtx()
		if ctx == nil {
			return
		}
		if id := RequestIDFromContext(ctx); id != "" {
			e.Str(KeyRequestID, id)
		}
		spanCtx := trace.SpanContextFromContext(ctx)
		if spanCtx.IsValid() {
			e.Str(KeyTraceID, spanCtx.TraceID().String()).Str(KeySpanID, spanCtx.SpanID().String())
		}
	}
}
