// Package commands routes "/name args" lines to kernel built-ins or to the active agent's command set.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/rs/zerolog"
)

// ErrUnknownCommand is reported when no command matches the line
var ErrUnknownCommand = errors.New("unknown command")

// Handler executes a command with its whitespace-split arguments
type Handler func(ctx context.Context, args []string) error

// Command is a routable command
type Command struct {
	Name        string
	Description string
	Usage       string
	Owner       string
	Handler     Handler
}

// CommandError is a reportable command failure
type CommandError struct {
	Name string
	Err  error
}

func (e *CommandError) Error() string {
	if errors.Is(e.Err, ErrUnknownCommand) {
		return fmt.Sprintf("command /%s not found", e.Name)
	}
	return fmt.Sprintf("/%s: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Router holds the kernel's built-in commands and the command set of the active agent
type Router struct {
	mu       sync.RWMutex
	builtins map[string]Command
	owner    string
	agent    map[string]Command
	logger   zerolog.Logger
}

// NewRouter creates an empty router
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		builtins: make(map[string]Command),
		agent:    make(map[string]Command),
		logger:   logger.With().Str("component", "command-router").Logger(),
	}
}

// RegisterBuiltin registers kernel commands. Names are case-insensitive.
func (r *Router) RegisterBuiltin(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range cmds {
		key := strings.ToLower(cmd.Name)
		if key == "" {
			return fmt.Errorf("command name is required")
		}
		if cmd.Handler == nil {
			return fmt.Errorf("command %s has no handler", cmd.Name)
		}
		if _, exists := r.builtins[key]; exists {
			return fmt.Errorf("command %s already registered", cmd.Name)
		}
		r.builtins[key] = cmd
	}
	return nil
}

// Replace atomically swaps the agent command set for the one owned by owner.
// Agent commands never shadow built-ins.
func (r *Router) Replace(owner string, cmds []Command) {
	next := make(map[string]Command, len(cmds))
	for _, cmd := range cmds {
		key := strings.ToLower(cmd.Name)
		if key == "" || cmd.Handler == nil {
			continue
		}
		next[key] = cmd
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range next {
		if _, builtin := r.builtins[key]; builtin {
			r.logger.Warn().Str("owner", owner).Str("command", key).Msg("Agent command shadows a built-in, ignoring")
			delete(next, key)
		}
	}
	r.owner = owner
	r.agent = next
	r.logger.Debug().Str("owner", owner).Int("count", len(next)).Msg("Agent commands installed")
}

// Owner returns the name of the agent whose commands are installed
func (r *Router) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// Lookup finds a command by case-insensitive name
func (r *Router) Lookup(name string) (Command, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.builtins[key]; ok {
		return cmd, true
	}
	cmd, ok := r.agent[key]
	return cmd, ok
}

// Names returns every routable command name, sorted
func (r *Router) Names() []string {
	cmds := r.List()
	names := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		names = append(names, cmd.Name)
	}
	return names
}

// List returns every routable command sorted by name
func (r *Router) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.builtins)+len(r.agent))
	for _, cmd := range r.builtins {
		cmds = append(cmds, cmd)
	}
	for _, cmd := range r.agent {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return strings.ToLower(cmds[i].Name) < strings.ToLower(cmds[j].Name)
	})
	return cmds
}

// Execute runs a command line without its leading slash
func (r *Router) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return &CommandError{Err: fmt.Errorf("empty command")}
	}

	name := fields[0]
	cmd, ok := r.Lookup(name)
	if !ok {
		return &CommandError{Name: name, Err: ErrUnknownCommand}
	}

	r.logger.Debug().Str("command", cmd.Name).Str("owner", cmd.Owner).Msg("Executing command")
	if err := cmd.Handler(ctx, fields[1:]); err != nil {
		if agent.IsCancellation(err) || agent.ShouldTerminate(err) {
			return err
		}
		return &CommandError{Name: cmd.Name, Err: err}
	}
	return nil
}

// FromAgent adapts an agent's declared commands into routable commands
func FromAgent(a *agent.Agent) []Command {
	declared := a.Backend().Commands()
	cmds := make([]Command, 0, len(declared))
	for _, c := range declared {
		name := c.Name
		cmds = append(cmds, Command{
			Name:        name,
			Description: c.Description,
			Usage:       c.Usage,
			Owner:       a.Name(),
			Handler: func(ctx context.Context, args []string) error {
				return a.Backend().RunCommand(ctx, name, args)
			},
		})
	}
	return cmds
}
