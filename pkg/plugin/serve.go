package plugin

import (
	"github.com/hashicorp/go-plugin"

	"github.com/harun/agentdesk/pkg/agent"
)

// Serve runs backend as an agent process. It blocks until the host disconnects
// and is meant to be called from the artifact's main.
func Serve(backend agent.Backend) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"agent": &AgentPlugin{Impl: backend},
		},
	})
}
