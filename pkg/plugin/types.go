package plugin

import (
	"github.com/harun/agentdesk/pkg/agent"
)

// AgentSource indicates where an agent came from
type AgentSource string

const (
	SourceBuiltin AgentSource = "builtin"
	SourcePlugin  AgentSource = "plugin"
)

// DiscoveredAgent is a plugin directory holding an agent artifact
type DiscoveredAgent struct {
	Name     string
	Dir      string
	Artifact string
}

// Factory creates a compiled-in agent backend
type Factory func() agent.Backend

// Builtins maps compiled-in agent names to their factories
type Builtins map[string]Factory

// WrapperTarget hands extra context to the agent a shell wrapper designates
type WrapperTarget struct {
	Agent   string
	Context map[string]string
}

// RuntimeConfig configures agent loading
type RuntimeConfig struct {
	PluginDirs []string
	// Builtins lists the compiled-in agents to enable, in load order
	Builtins    []string
	ConfigRoot  string
	Interactive bool
	RenderMode  agent.RenderMode
	Wrapper     *WrapperTarget
}

// LoadResult contains the results of loading agents
type LoadResult struct {
	Loaded []string
	Failed []string
	Errors map[string]error
}
