package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/harun/agentdesk/pkg/agent"
)

// echo writes to stdout, which the host forwards to its terminal
type echo struct {
	mu     sync.Mutex
	upper  bool
	last   string
	prefix string
}

func newEcho() *echo {
	return &echo{prefix: "echo: "}
}

func (e *echo) Name() string          { return "echo" }
func (e *echo) Description() string   { return "Repeats every query, useful to check plugin loading" }
func (e *echo) DefaultPrompt() string { return "echo" }

func (e *echo) Initialize(ctx context.Context, cfg agent.Config) error {
	if p, ok := cfg.WrapperContext["prefix"]; ok {
		e.prefix = p
	}
	return nil
}

func (e *echo) Commands() []agent.Command {
	return []agent.Command{
		{Name: "upper", Description: "Toggle upper-case echoing", Usage: "/upper"},
	}
}

func (e *echo) RunCommand(ctx context.Context, name string, args []string) error {
	if name != "upper" {
		return fmt.Errorf("unknown command %q", name)
	}
	e.mu.Lock()
	e.upper = !e.upper
	e.mu.Unlock()
	return nil
}

func (e *echo) Chat(ctx context.Context, input string, sc agent.SessionContext) (bool, error) {
	if strings.TrimSpace(input) == "" {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	answer := input
	if e.upper {
		answer = strings.ToUpper(answer)
	}
	e.last = answer
	fmt.Fprintln(os.Stdout, e.prefix+answer)
	return true, nil
}

func (e *echo) ResetChat() {
	e.mu.Lock()
	e.last = ""
	e.mu.Unlock()
}

func (e *echo) AcceptsFeedback(action agent.UserAction) bool { return false }

func (e *echo) HandleFeedback(ctx context.Context, fb agent.Feedback) error { return nil }

func (e *echo) LastResponse() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
