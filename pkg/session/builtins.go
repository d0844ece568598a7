package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/commands"
	"github.com/harun/agentdesk/pkg/stack"
)

const kernelOwner = "kernel"

var errNoActiveAgent = errors.New("no active agent, use /agent use <name> or @<name>")

// builtinCommands is the kernel command set, registered once per loop
func (l *Loop) builtinCommands() []commands.Command {
	cmd := func(name, usage, description string, h commands.Handler) commands.Command {
		return commands.Command{Name: name, Usage: usage, Description: description, Owner: kernelOwner, Handler: h}
	}
	return []commands.Command{
		cmd("help", "/help", "Show available commands", l.cmdHelp),
		cmd("exit", "/exit", "Exit the session", l.cmdExit),
		cmd("agent", "/agent [list|use <name> [--default]|info [name]]", "List, switch or describe agents", l.cmdAgent),
		cmd("return", "/return", "Return from a delegated agent", l.cmdReturn),
		cmd("retry", "/retry", "Regenerate the last response", l.cmdRetry),
		cmd("like", "/like [comment]", "Tell the agent the last response was helpful", l.feedbackCmd(agent.ActionLike)),
		cmd("dislike", "/dislike [comment]", "Tell the agent the last response was not helpful", l.feedbackCmd(agent.ActionDislike)),
		cmd("copy", "/copy", "Copy the last response to the clipboard", l.cmdCopy),
		cmd("prompt", "/prompt [text]", "Show or set the active agent's prompt", l.cmdPrompt),
		cmd("refresh", "/refresh", "Start a new chat with the active agent", l.cmdRefresh),
	}
}

func (l *Loop) cmdHelp(ctx context.Context, args []string) error {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range l.opts.Router.List() {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		fmt.Fprintf(&b, "\n  %-36s %s", usage, c.Description)
		if c.Owner != kernelOwner {
			fmt.Fprintf(&b, " (%s)", c.Owner)
		}
	}
	b.WriteString("\nType @<agent> to switch agents.")
	l.term.Info(b.String())
	return nil
}

func (l *Loop) cmdExit(ctx context.Context, args []string) error {
	l.state.Exit = true
	return nil
}

func (l *Loop) cmdAgent(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "list":
		active := l.opts.Stack.Active()
		var b strings.Builder
		for _, a := range l.opts.Registry.All() {
			marker := " "
			if a == active {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %-16s %s\n", marker, a.Name(), a.Description())
		}
		if b.Len() == 0 {
			return fmt.Errorf("no agents are loaded")
		}
		l.term.Info(strings.TrimRight(b.String(), "\n"))
		return nil

	case "use":
		if len(args) < 2 {
			return fmt.Errorf("usage: /agent use <name> [--default]")
		}
		target, ok := l.opts.Registry.Find(args[1])
		if !ok {
			return fmt.Errorf("agent '%s' not found", args[1])
		}
		l.opts.Stack.SwitchTo(target)
		l.showLanding(target)
		if len(args) > 2 && args[2] == "--default" {
			if l.opts.SaveDefault == nil {
				return fmt.Errorf("default agent cannot be saved in this session")
			}
			if err := l.opts.SaveDefault(target.Name()); err != nil {
				return fmt.Errorf("failed to save default agent: %w", err)
			}
			l.term.Info(fmt.Sprintf("'%s' is now the default agent.", target.Name()))
		}
		return nil

	case "info":
		target := l.opts.Stack.Active()
		if len(args) > 1 {
			var ok bool
			if target, ok = l.opts.Registry.Find(args[1]); !ok {
				return fmt.Errorf("agent '%s' not found", args[1])
			}
		}
		if target == nil {
			return errNoActiveAgent
		}
		l.showLanding(target)
		return nil
	}
	return fmt.Errorf("unknown subcommand %q", sub)
}

func (l *Loop) cmdReturn(ctx context.Context, args []string) error {
	removed, err := l.opts.Stack.Pop()
	if err != nil {
		if errors.Is(err, stack.ErrNothingToPop) {
			return fmt.Errorf("no delegated agent is active")
		}
		return err
	}
	l.term.Info(fmt.Sprintf("Returned from '%s' to '%s'.", removed.Name(), l.opts.Stack.Active().Name()))
	return nil
}

func (l *Loop) cmdRetry(ctx context.Context, args []string) error {
	if l.state.LastQuery == "" || l.state.LastAgent == nil {
		return fmt.Errorf("nothing to retry")
	}
	l.state.Regenerate = true
	l.sendFeedback(agent.Feedback{Action: agent.ActionRetry, Query: l.state.LastQuery})
	return nil
}

func (l *Loop) feedbackCmd(action agent.UserAction) commands.Handler {
	return func(ctx context.Context, args []string) error {
		if l.state.LastAgent == nil {
			return fmt.Errorf("no response to give feedback on")
		}
		if !l.sendFeedback(agent.Feedback{Action: action, Query: l.state.LastQuery, Comment: strings.Join(args, " ")}) {
			l.term.Info(fmt.Sprintf("'%s' does not take %s feedback.", l.state.LastAgent.Name(), action))
			return nil
		}
		l.term.Info("Thanks for the feedback.")
		return nil
	}
}

func (l *Loop) cmdCopy(ctx context.Context, args []string) error {
	if l.state.LastResponse == "" {
		return fmt.Errorf("no response to copy")
	}
	if l.opts.Clipboard == nil {
		return fmt.Errorf("clipboard is not available")
	}
	if err := l.opts.Clipboard.WriteAll(l.state.LastResponse); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	// The copied text must not be offered back on the next query
	l.state.markOffered(strings.TrimSpace(l.state.LastResponse))
	l.sendFeedback(agent.Feedback{Action: agent.ActionCopy, Query: l.state.LastQuery})
	l.term.Info("Response copied to the clipboard.")
	return nil
}

func (l *Loop) cmdPrompt(ctx context.Context, args []string) error {
	active := l.opts.Stack.Active()
	if active == nil {
		return errNoActiveAgent
	}
	if len(args) == 0 {
		l.term.Info(fmt.Sprintf("Prompt of '%s': %s", active.Name(), active.Prompt()))
		return nil
	}
	active.SetPrompt(strings.Join(args, " "))
	return nil
}

func (l *Loop) cmdRefresh(ctx context.Context, args []string) error {
	active := l.opts.Stack.Active()
	if active == nil {
		return errNoActiveAgent
	}
	active.Backend().ResetChat()
	l.state.LastResponse = ""
	l.term.Info(fmt.Sprintf("Started a new chat with '%s'.", active.Name()))
	return nil
}

// sendFeedback hands fb to the last serving agent on its own goroutine. It reports
// whether the agent accepts the action.
func (l *Loop) sendFeedback(fb agent.Feedback) bool {
	target := l.state.LastAgent
	if target == nil || !target.Backend().AcceptsFeedback(fb.Action) {
		return false
	}

	go func() {
		if err := target.Backend().HandleFeedback(l.baseCtx, fb); err != nil {
			l.logger.Warn().Err(err).Str("agent", target.Name()).Str("action", string(fb.Action)).Msg("Feedback delivery failed")
		}
	}()
	return true
}
