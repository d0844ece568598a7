// Package stack tracks the active agent and at most one delegated sub-agent.
//
// Invariants:
// - Depth is always 0, 1 or 2; the top element is the active agent.
// - Pushing a different agent resets its chat and installs its commands.
// - Popping back never resets the exposed agent's chat, it resumes the previous conversation.
// - SwitchTo always leaves depth 1.
package stack

import (
	"errors"
	"sync"

	"github.com/harun/agentdesk/internal/observability"
	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/commands"
	"github.com/rs/zerolog"
)

// MaxDepth is the number of agents the stack can hold
const MaxDepth = 2

var (
	// ErrStackFull is returned when pushing onto a full stack
	ErrStackFull = errors.New("agent stack is full")

	// ErrNothingToPop is returned when no delegated agent is active
	ErrNothingToPop = errors.New("no delegated agent to return from")
)

// CommandInstaller swaps the agent command set in the command router
type CommandInstaller interface {
	Replace(owner string, cmds []commands.Command)
}

// Stack is the bounded active-agent stack
type Stack struct {
	mu          sync.Mutex
	items       []*agent.Agent
	installer   CommandInstaller
	interactive bool
	logger      zerolog.Logger
}

// New creates an empty stack
func New(installer CommandInstaller, interactive bool, logger zerolog.Logger) *Stack {
	return &Stack{
		items:       make([]*agent.Agent, 0, MaxDepth),
		installer:   installer,
		interactive: interactive,
		logger:      logger.With().Str("component", "agent-stack").Logger(),
	}
}

// Push makes a the active agent on top of the current one
func (s *Stack) Push(a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == MaxDepth {
		return ErrStackFull
	}

	prev := s.top()
	s.items = append(s.items, a)
	if a != prev || !s.interactive {
		s.activate(a, true)
	}
	s.record()

	s.logger.Debug().Str("agent", a.Name()).Int("depth", len(s.items)).Msg("Agent pushed")
	return nil
}

// Pop returns from the delegated agent to the one below it
func (s *Stack) Pop() (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) != MaxDepth {
		return nil, ErrNothingToPop
	}

	removed := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]

	exposed := s.top()
	if exposed != removed {
		s.activate(exposed, false)
	}
	s.record()

	s.logger.Debug().Str("removed", removed.Name()).Str("active", exposed.Name()).Msg("Agent popped")
	return removed, nil
}

// SwitchTo collapses the stack to a single agent
func (s *Stack) SwitchTo(a *agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		s.items = append(s.items, a)
		s.activate(a, true)
		s.record()
		return
	}

	prev := s.top()
	clear(s.items)
	s.items = append(s.items[:0], a)
	if a != prev {
		s.activate(a, true)
	}
	s.record()

	s.logger.Debug().Str("agent", a.Name()).Msg("Switched active agent")
}

// Active returns the top agent, or nil when the stack is empty
func (s *Stack) Active() *agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.top()
}

// Depth returns the number of agents on the stack
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Agents returns the stack bottom first
func (s *Stack) Agents() []*agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*agent.Agent(nil), s.items...)
}

func (s *Stack) top() *agent.Agent {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

// activate installs a's commands, resetting its chat first when reset is set
func (s *Stack) activate(a *agent.Agent, reset bool) {
	if reset {
		a.Backend().ResetChat()
	}
	if s.installer != nil {
		s.installer.Replace(a.Name(), commands.FromAgent(a))
	}
}

func (s *Stack) record() {
	observability.SetStackDepth(len(s.items))
}
