// Package agenttest provides in-memory agent backends for tests.
package agenttest

import (
	"context"
	"sync"

	"github.com/harun/agentdesk/pkg/agent"
)

// Fake is a scriptable agent.Backend
type Fake struct {
	NameValue        string
	DescriptionValue string
	PromptValue      string
	CommandList      []agent.Command
	InitErr          error
	ChatFunc         func(ctx context.Context, input string, sc agent.SessionContext) (bool, error)
	CommandFunc      func(ctx context.Context, name string, args []string) error
	Accepts          map[agent.UserAction]bool
	Response         string

	mu        sync.Mutex
	config    agent.Config
	resets    int
	queries   []string
	commands  []string
	feedback  []agent.Feedback
	feedbackC chan agent.Feedback
}

// NewFake creates a fake backend with the given name
func NewFake(name string) *Fake {
	return &Fake{
		NameValue:        name,
		DescriptionValue: name + " agent",
		PromptValue:      name,
		feedbackC:        make(chan agent.Feedback, 16),
	}
}

func (f *Fake) Name() string          { return f.NameValue }
func (f *Fake) Description() string   { return f.DescriptionValue }
func (f *Fake) DefaultPrompt() string { return f.PromptValue }

func (f *Fake) Initialize(ctx context.Context, cfg agent.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
	return f.InitErr
}

func (f *Fake) Commands() []agent.Command {
	return f.CommandList
}

func (f *Fake) RunCommand(ctx context.Context, name string, args []string) error {
	f.mu.Lock()
	f.commands = append(f.commands, name)
	f.mu.Unlock()
	if f.CommandFunc != nil {
		return f.CommandFunc(ctx, name, args)
	}
	return nil
}

func (f *Fake) Chat(ctx context.Context, input string, sc agent.SessionContext) (bool, error) {
	f.mu.Lock()
	f.queries = append(f.queries, input)
	f.mu.Unlock()
	if f.ChatFunc != nil {
		return f.ChatFunc(ctx, input, sc)
	}
	return true, nil
}

func (f *Fake) ResetChat() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *Fake) AcceptsFeedback(action agent.UserAction) bool {
	return f.Accepts[action]
}

func (f *Fake) HandleFeedback(ctx context.Context, fb agent.Feedback) error {
	f.mu.Lock()
	f.feedback = append(f.feedback, fb)
	f.mu.Unlock()
	select {
	case f.feedbackC <- fb:
	default:
	}
	return nil
}

func (f *Fake) LastResponse() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Response
}

// SetResponse replaces the text reported by LastResponse
func (f *Fake) SetResponse(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Response = text
}

// Config returns the config received at initialization
func (f *Fake) Config() agent.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Resets returns how many times ResetChat was called
func (f *Fake) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

// Queries returns the inputs passed to Chat
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// RanCommands returns the names passed to RunCommand
func (f *Fake) RanCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// FeedbackC delivers feedback as it is handled
func (f *Fake) FeedbackC() <-chan agent.Feedback {
	return f.feedbackC
}

// FakeOrchestrator is a Fake that also implements agent.Orchestrator
type FakeOrchestrator struct {
	*Fake
	SelectFunc func(ctx context.Context, query string, descriptions []string) (int, error)

	selectMu sync.Mutex
	selects  int
}

// NewFakeOrchestrator creates an orchestrator-capable fake
func NewFakeOrchestrator(name string, selectFunc func(ctx context.Context, query string, descriptions []string) (int, error)) *FakeOrchestrator {
	return &FakeOrchestrator{Fake: NewFake(name), SelectFunc: selectFunc}
}

func (f *FakeOrchestrator) SelectAgent(ctx context.Context, query string, descriptions []string) (int, error) {
	f.selectMu.Lock()
	f.selects++
	f.selectMu.Unlock()
	if f.SelectFunc == nil {
		return agent.NoSuitableAgent, nil
	}
	return f.SelectFunc(ctx, query, descriptions)
}

// Selects returns how many times SelectAgent was called
func (f *FakeOrchestrator) Selects() int {
	f.selectMu.Lock()
	defer f.selectMu.Unlock()
	return f.selects
}
