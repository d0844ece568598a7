package cli

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/agents/assistant"
	"github.com/harun/agentdesk/pkg/agents/relay"
	"github.com/harun/agentdesk/pkg/plugin"
)

// builtinFactories returns the compiled-in agents, writing their responses to out
func builtinFactories(out io.Writer, logger zerolog.Logger) plugin.Builtins {
	return plugin.Builtins{
		assistant.Name: func() agent.Backend { return assistant.New(out, logger) },
		relay.Name:     func() agent.Backend { return relay.New(out, logger) },
	}
}
