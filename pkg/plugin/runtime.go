package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/agentdesk/internal/observability"
	"github.com/harun/agentdesk/pkg/agent"
)

// AgentRuntime discovers, launches and initializes agents
type AgentRuntime struct {
	logger    zerolog.Logger
	discovery *AgentDiscovery
	loader    *AgentLoader
	factories Builtins
	config    RuntimeConfig
}

// NewAgentRuntime creates a new agent runtime
func NewAgentRuntime(logger zerolog.Logger, factories Builtins, config RuntimeConfig) *AgentRuntime {
	return &AgentRuntime{
		logger:    logger.With().Str("component", "agent-runtime").Logger(),
		discovery: NewAgentDiscovery(logger),
		loader:    NewAgentLoader(logger),
		factories: factories,
		config:    config,
	}
}

// Load initializes enabled builtins then discovered plugins and registers every
// agent that comes up. A single agent failing never aborts the load.
func (r *AgentRuntime) Load(ctx context.Context) (*AgentRegistry, *LoadResult) {
	r.logger.Info().Msg("Loading agents")

	registry := NewAgentRegistry()
	result := &LoadResult{
		Loaded: []string{},
		Failed: []string{},
		Errors: make(map[string]error),
	}

	for _, name := range r.config.Builtins {
		factory, ok := r.factories[strings.ToLower(name)]
		if !ok {
			r.fail(result, SourceBuiltin, &agent.LoadError{Agent: name, Phase: "launch", Err: fmt.Errorf("unknown builtin agent")})
			continue
		}
		backend := factory()
		// builtins holding connections release them with the registry
		closer, _ := backend.(io.Closer)
		r.add(ctx, registry, result, SourceBuiltin, name, backend, closer)
	}

	for _, discovered := range r.discovery.Discover(r.config.PluginDirs) {
		backend, handle, err := r.loader.Launch(discovered)
		if err != nil {
			r.fail(result, SourcePlugin, &agent.LoadError{Agent: discovered.Name, Phase: "launch", Err: err})
			continue
		}
		r.add(ctx, registry, result, SourcePlugin, discovered.Name, backend, handle)
	}

	r.logger.Info().
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Msg("Agent loading complete")

	return registry, result
}

func (r *AgentRuntime) add(ctx context.Context, registry *AgentRegistry, result *LoadResult, source AgentSource, label string, backend agent.Backend, handle io.Closer) {
	release := func() {
		if handle != nil {
			_ = handle.Close()
		}
	}

	name := backend.Name()
	if name == "" {
		name = label
	}

	cfg, err := r.agentConfig(name)
	if err != nil {
		release()
		r.fail(result, source, &agent.LoadError{Agent: name, Phase: "initialize", Err: err})
		return
	}

	if err := backend.Initialize(ctx, cfg); err != nil {
		release()
		r.fail(result, source, &agent.LoadError{Agent: name, Phase: "initialize", Err: err})
		return
	}

	if err := registry.Register(agent.New(backend, handle)); err != nil {
		release()
		r.fail(result, source, &agent.LoadError{Agent: name, Phase: "register", Err: err})
		return
	}

	result.Loaded = append(result.Loaded, name)
	observability.RecordAgentLoad(string(source), true)
	r.logger.Info().Str("agent", name).Str("source", string(source)).Msg("Agent loaded and registered")
}

func (r *AgentRuntime) fail(result *LoadResult, source AgentSource, err *agent.LoadError) {
	r.logger.Error().Err(err.Err).Str("agent", err.Agent).Str("phase", err.Phase).Msg("Failed to load agent")
	result.Failed = append(result.Failed, err.Agent)
	result.Errors[err.Agent] = err
	observability.RecordAgentLoad(string(source), false)
}

// agentConfig builds the per-agent configuration handed to Initialize
func (r *AgentRuntime) agentConfig(name string) (agent.Config, error) {
	cfg := agent.Config{
		Interactive: r.config.Interactive,
		RenderMode:  r.config.RenderMode,
	}
	if cfg.RenderMode == "" {
		cfg.RenderMode = agent.RenderIncremental
	}

	if r.config.ConfigRoot != "" {
		dir := filepath.Join(r.config.ConfigRoot, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cfg, fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg.ConfigDir = dir
	}

	if w := r.config.Wrapper; w != nil && strings.EqualFold(strings.TrimSpace(w.Agent), name) {
		cfg.WrapperContext = w.Context
	}
	return cfg, nil
}
