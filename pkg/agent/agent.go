package agent

import (
	"io"
	"strings"
	"sync"
)

// Agent wraps one loaded backend together with its isolation handle
type Agent struct {
	backend     Backend
	handle      io.Closer
	name        string
	description string

	mu                   sync.RWMutex
	prompt               string
	orchestrator         Orchestrator
	orchestratorDisabled bool
}

// New wraps a backend. handle may be nil for compiled-in agents.
func New(backend Backend, handle io.Closer) *Agent {
	a := &Agent{
		backend:     backend,
		handle:      handle,
		name:        backend.Name(),
		description: backend.Description(),
		prompt:      backend.DefaultPrompt(),
	}
	if orch, ok := AsOrchestrator(backend); ok {
		a.orchestrator = orch
	}
	return a
}

// Name returns the agent's stable name
func (a *Agent) Name() string {
	return a.name
}

// Description returns the agent's description
func (a *Agent) Description() string {
	return a.description
}

// Backend returns the wrapped implementation
func (a *Agent) Backend() Backend {
	return a.backend
}

// Is compares the agent's name case-insensitively
func (a *Agent) Is(name string) bool {
	return strings.EqualFold(a.name, strings.TrimSpace(name))
}

// Prompt returns the current prompt string
func (a *Agent) Prompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompt
}

// SetPrompt replaces the prompt string
func (a *Agent) SetPrompt(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompt = prompt
}

// IsOrchestrator reports whether the backend declares the orchestrator capability
func (a *Agent) IsOrchestrator() bool {
	return a.orchestrator != nil
}

// Orchestrator returns the orchestrator capability unless it is missing or disabled
func (a *Agent) Orchestrator() (Orchestrator, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.orchestrator == nil || a.orchestratorDisabled {
		return nil, false
	}
	return a.orchestrator, true
}

// OrchestratorDisabled reports whether the role was switched off for this session
func (a *Agent) OrchestratorDisabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.orchestratorDisabled
}

// DisableOrchestrator switches off the orchestrator role for the rest of the process
func (a *Agent) DisableOrchestrator() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orchestratorDisabled = true
}

// Close releases the isolation handle
func (a *Agent) Close() error {
	if a.handle == nil {
		return nil
	}
	return a.handle.Close()
}
