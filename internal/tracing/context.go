package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// TurnIDKey is the context key for the id of one dispatched query
	TurnIDKey ContextKey = "turn_id"
	// AgentKey is the context key for the serving agent's name
	AgentKey ContextKey = "agent"
	// SessionIDKey is the context key for the session id
	SessionIDKey ContextKey = "session_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	TurnID    string
	Agent     string
	SessionID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewTurnID generates a new turn ID
func NewTurnID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithTurnID adds a turn ID to the context
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnIDKey, turnID)
}

// WithAgent adds the serving agent's name to the context
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, AgentKey, agent)
}

// WithSessionID adds a session id to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func value(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return value(ctx, TraceIDKey) }

// GetTurnID retrieves the turn ID from the context
func GetTurnID(ctx context.Context) string { return value(ctx, TurnIDKey) }

// GetAgent retrieves the agent name from the context
func GetAgent(ctx context.Context) string { return value(ctx, AgentKey) }

// GetSessionID retrieves the session id from the context
func GetSessionID(ctx context.Context) string { return value(ctx, SessionIDKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		TurnID:    GetTurnID(ctx),
		Agent:     GetAgent(ctx),
		SessionID: GetSessionID(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.TurnID != "" {
		ctx = WithTurnID(ctx, tc.TurnID)
	}
	if tc.Agent != "" {
		ctx = WithAgent(ctx, tc.Agent)
	}
	if tc.SessionID != "" {
		ctx = WithSessionID(ctx, tc.SessionID)
	}
	return ctx
}

// NewTurnContext creates the context of one dispatched query, with a fresh turn ID
func NewTurnContext(ctx context.Context, sessionID, agent string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithSessionID(ctx, sessionID)
	ctx = WithTurnID(ctx, NewTurnID())
	return WithAgent(ctx, agent)
}
