package session

import (
	"context"
	"fmt"

	"github.com/harun/agentdesk/pkg/agent"
)

// Selection names the preferred initial agents
type Selection struct {
	// Wrapper is the agent designated by a shell wrapper
	Wrapper string
	// Default is the persisted default agent
	Default string
}

// SelectInitial picks the first active agent and switches to it. Every failure is
// logged and swallowed, leaving the session without an active agent.
func (l *Loop) SelectInitial(ctx context.Context, sel Selection) *agent.Agent {
	chosen, err := l.pickInitial(ctx, sel)
	if err != nil {
		if !agent.IsCancellation(err) {
			l.logger.Warn().Err(err).Msg("Initial agent selection failed")
		}
		return nil
	}
	if chosen == nil {
		return nil
	}

	l.opts.Stack.SwitchTo(chosen)
	l.logger.Info().Str("agent", chosen.Name()).Msg("Initial agent selected")
	l.showLanding(chosen)
	return chosen
}

func (l *Loop) pickInitial(ctx context.Context, sel Selection) (*agent.Agent, error) {
	reg := l.opts.Registry
	if reg.Len() == 0 {
		l.term.Warn("No agents are loaded, chat is disabled.")
		return nil, nil
	}

	for _, name := range []string{sel.Wrapper, sel.Default} {
		if name == "" {
			continue
		}
		if a, ok := reg.Find(name); ok {
			return a, nil
		}
		l.term.Warn(fmt.Sprintf("Agent '%s' is not available.", name))
	}

	agents := reg.All()
	if len(agents) == 1 {
		return agents[0], nil
	}
	if !l.opts.Interactive {
		return nil, fmt.Errorf("%d agents loaded and none designated", len(agents))
	}

	chooseCtx, cancel := l.opContext(ctx)
	defer cancel()
	idx, err := l.term.Choose(chooseCtx, "Select the agent to use:", reg.Descriptions())
	if err != nil {
		return nil, err
	}
	return agents[idx], nil
}

// showLanding prints the name, description and commands of a
func (l *Loop) showLanding(a *agent.Agent) {
	msg := fmt.Sprintf("Active agent: %s\n%s", a.Name(), a.Description())
	if cmds := a.Backend().Commands(); len(cmds) > 0 {
		msg += "\nCommands:"
		for _, c := range cmds {
			msg += fmt.Sprintf("\n  /%s  %s", c.Name, c.Description)
		}
	}
	l.term.Info(msg)
}
