package plugin

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harun/agentdesk/pkg/agent"
)

// AgentRegistry holds loaded agents in load order. Names are unique, compared
// case-insensitively.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents []*agent.Agent
}

// NewAgentRegistry creates a new agent registry
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{}
}

// Register appends a loaded agent
func (r *AgentRegistry) Register(a *agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.agents {
		if existing.Is(a.Name()) {
			return fmt.Errorf("agent %s already registered", a.Name())
		}
	}
	r.agents = append(r.agents, a)
	return nil
}

// Find retrieves an agent by name
func (r *AgentRegistry) Find(name string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.agents {
		if a.Is(name) {
			return a, true
		}
	}
	return nil, false
}

// All returns all registered agents in load order
func (r *AgentRegistry) All() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*agent.Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Len returns the number of registered agents
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Names returns agent names in load order
func (r *AgentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.agents))
	for i, a := range r.agents {
		names[i] = a.Name()
	}
	return names
}

// Descriptions returns one "name: description" line per agent, in load order.
// Indexes match All.
func (r *AgentRegistry) Descriptions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.agents))
	for i, a := range r.agents {
		out[i] = fmt.Sprintf("%s: %s", a.Name(), strings.TrimSpace(a.Description()))
	}
	return out
}

// Close releases every agent's isolation handle
func (r *AgentRegistry) Close() error {
	r.mu.Lock()
	agents := r.agents
	r.agents = nil
	r.mu.Unlock()

	var errs []error
	for _, a := range agents {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", a.Name(), err))
		}
	}
	return errors.Join(errs...)
}
