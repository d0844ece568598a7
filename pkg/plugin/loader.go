package plugin

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"

	"github.com/harun/agentdesk/pkg/agent"
)

// AgentLoader launches agent processes behind a plugin boundary
type AgentLoader struct {
	logger zerolog.Logger
}

// NewAgentLoader creates a new agent loader
func NewAgentLoader(logger zerolog.Logger) *AgentLoader {
	return &AgentLoader{
		logger: logger.With().Str("component", "agent-loader").Logger(),
	}
}

// processHandle is the isolation handle for one agent process
type processHandle struct {
	client *plugin.Client
}

func (h *processHandle) Close() error {
	h.client.Kill()
	return nil
}

// Launch starts the artifact and returns a backend proxy together with the
// handle that owns the process
func (l *AgentLoader) Launch(discovered DiscoveredAgent) (agent.Backend, io.Closer, error) {
	if _, err := os.Stat(discovered.Artifact); err != nil {
		return nil, nil, fmt.Errorf("agent executable not found: %s", discovered.Artifact)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(discovered.Artifact),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		SyncStdout:       os.Stdout,
		SyncStderr:       os.Stderr,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "agent." + discovered.Name,
			Output: l.logger,
			Level:  hclog.Warn,
		}),
	})
	handle := &processHandle{client: client}

	rpcClient, err := client.Client()
	if err != nil {
		handle.Close()
		return nil, nil, fmt.Errorf("failed to connect to agent: %w", err)
	}

	raw, err := rpcClient.Dispense("agent")
	if err != nil {
		handle.Close()
		return nil, nil, fmt.Errorf("failed to dispense agent: %w", err)
	}

	backend, ok := raw.(*AgentRPCClient)
	if !ok {
		handle.Close()
		return nil, nil, fmt.Errorf("unexpected agent type %T", raw)
	}
	if err := backend.Err(); err != nil {
		handle.Close()
		return nil, nil, fmt.Errorf("failed to describe agent: %w", err)
	}

	l.logger.Debug().
		Str("name", backend.Name()).
		Str("artifact", discovered.Artifact).
		Msg("Agent process started")

	return backend, handle, nil
}
