package tracing

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns base tagged with the trace, turn and agent carried by ctx.
// The session id is left to the caller's component logger.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	lc := base.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.TurnID != "" {
		lc = lc.Str("turn_id", tc.TurnID)
	}
	if tc.Agent != "" {
		lc = lc.Str("agent", tc.Agent)
	}
	return lc.Logger()
}

// CarryTrace copies the trace ID and span of source onto target. An operation
// context is cancelled when the operation returns; the work that follows it, such
// as the chat after an orchestrator selection, continues the trace on target.
func CarryTrace(target, source context.Context) context.Context {
	if id := GetTraceID(source); id != "" {
		target = WithTraceID(target, id)
	}
	if sc := trace.SpanContextFromContext(source); sc.IsValid() {
		target = trace.ContextWithSpanContext(target, sc)
	}
	return target
}
