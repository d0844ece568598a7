package agent

import (
	"context"
)

// RenderMode selects how an agent writes its responses
type RenderMode string

const (
	// RenderIncremental streams partial output as it arrives
	RenderIncremental RenderMode = "incremental"
	// RenderFull writes the whole response once, used when output is redirected
	RenderFull RenderMode = "full"
)

// NoSuitableAgent is returned by SelectAgent when no registered agent fits the query
const NoSuitableAgent = -1

// Config is handed to a backend once, at initialization
type Config struct {
	Interactive    bool
	ConfigDir      string
	RenderMode     RenderMode
	WrapperContext map[string]string
}

// Command describes one command contributed by an agent
type Command struct {
	Name        string
	Description string
	Usage       string
}

// SessionContext carries per-turn session information into Chat
type SessionContext struct {
	SessionID   string
	TurnID      string
	Prompt      string
	Interactive bool
	Regenerate  bool
}

// UserAction is an operator reaction to the last response
type UserAction string

const (
	ActionRetry   UserAction = "retry"
	ActionLike    UserAction = "like"
	ActionDislike UserAction = "dislike"
	ActionCopy    UserAction = "copy"
)

// Feedback is delivered to agents that accept a given UserAction
type Feedback struct {
	Action  UserAction
	Query   string
	Comment string
}

// Backend is the capability contract implemented by every agent, in process or behind a plugin boundary
type Backend interface {
	Name() string
	Description() string
	DefaultPrompt() string

	// Initialize is called exactly once before the agent is registered
	Initialize(ctx context.Context, cfg Config) error

	// Commands returns the agent's command set, installed while it is active
	Commands() []Command

	// RunCommand executes one of the agent's commands
	RunCommand(ctx context.Context, name string, args []string) error

	// Chat serves one query. A false result with a nil error is a failed self-check.
	Chat(ctx context.Context, input string, sc SessionContext) (bool, error)

	// ResetChat drops the conversation context
	ResetChat()

	AcceptsFeedback(action UserAction) bool
	HandleFeedback(ctx context.Context, fb Feedback) error
}

// Orchestrator is implemented by backends able to pick a better-suited agent for a query
type Orchestrator interface {
	// SelectAgent returns an index into descriptions, or NoSuitableAgent
	SelectAgent(ctx context.Context, query string, descriptions []string) (int, error)
}

// Responder is implemented by backends that keep the text of their last answer.
// The session reads it to avoid offering clipboard content the agent just produced.
type Responder interface {
	LastResponse() string
}

// LastResponse returns the backend's last answer, or "" when it does not keep one
func LastResponse(b Backend) string {
	if r, ok := b.(Responder); ok {
		return r.LastResponse()
	}
	return ""
}

// capabilityProbe lets proxies that always expose SelectAgent report whether the
// remote implementation really supports it
type capabilityProbe interface {
	CanOrchestrate() bool
}

// AsOrchestrator reports whether b declares the orchestrator capability
func AsOrchestrator(b Backend) (Orchestrator, bool) {
	orch, ok := b.(Orchestrator)
	if !ok {
		return nil, false
	}
	if probe, ok := b.(capabilityProbe); ok && !probe.CanOrchestrate() {
		return nil, false
	}
	return orch, true
}
