package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/agentdesk/internal/observability"
	"github.com/harun/agentdesk/internal/tracing"
	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/commands"
	"github.com/harun/agentdesk/pkg/interrupt"
	"github.com/harun/agentdesk/pkg/remote"
	"github.com/harun/agentdesk/pkg/stack"
)

// DefaultReadyTimeout bounds the wait for the remote channel before the first read
const DefaultReadyTimeout = 3 * time.Second

// Registry is the read side of the agent registry
type Registry interface {
	Find(name string) (*agent.Agent, bool)
	All() []*agent.Agent
	Len() int
	Descriptions() []string
}

// Options wires a Loop to its collaborators
type Options struct {
	Registry  Registry
	Stack     *stack.Stack
	Router    *commands.Router
	Interrupt *interrupt.Controller
	Remote    remote.Channel
	Terminal  Terminal

	Clipboard        Clipboard
	ClipboardEnabled bool

	// Transcript, when set, records every dispatched query
	Transcript *Transcript

	// SaveDefault persists the default agent for "/agent use <name> --default"
	SaveDefault func(name string) error

	Interactive  bool
	ReadyTimeout time.Duration
	Logger       zerolog.Logger
}

type inputKind int

const (
	kindEmpty inputKind = iota
	kindCommand
	kindTag
	kindQuery
)

type inputSource int

const (
	sourceTerminal inputSource = iota
	sourceRemote
	sourceRegenerate
)

// Loop is the session dispatch loop
type Loop struct {
	opts    Options
	term    Terminal
	state   *State
	logger  zerolog.Logger
	baseCtx context.Context
	fatal   error

	// readFailures counts consecutive terminal read errors other than EOF
	readFailures int
}

const (
	maxReadFailures = 3
	readRetryDelay  = 100 * time.Millisecond
)

// New creates a loop and registers the kernel commands with the router
func New(opts Options) (*Loop, error) {
	if opts.Registry == nil || opts.Stack == nil || opts.Router == nil || opts.Terminal == nil {
		return nil, fmt.Errorf("registry, stack, router and terminal are required")
	}
	if opts.Interrupt == nil {
		opts.Interrupt = interrupt.New(context.Background(), opts.Logger)
	}
	if opts.Remote == nil {
		opts.Remote = remote.Nop{}
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}

	l := &Loop{
		opts:    opts,
		term:    opts.Terminal,
		state:   NewState(),
		baseCtx: context.Background(),
	}
	l.logger = opts.Logger.With().Str("component", "session").Str("session_id", l.state.ID).Logger()

	if err := opts.Router.RegisterBuiltin(l.builtinCommands()...); err != nil {
		return nil, fmt.Errorf("failed to register kernel commands: %w", err)
	}
	return l, nil
}

// State returns the session state
func (l *Loop) State() *State {
	return l.state
}

// Run processes input until the session exits. It returns the fatal error that
// ended the session, if any, or ctx.Err() when ctx was cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.baseCtx = ctx
	l.waitRemote(ctx)

	for !l.state.Exit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.iterate(ctx); err != nil {
			return err
		}
	}

	l.logger.Info().Msg("Session ended")
	return l.fatal
}

// waitRemote gives the remote channel a bounded chance to connect
func (l *Loop) waitRemote(ctx context.Context) {
	timer := time.NewTimer(l.opts.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-l.opts.Remote.Ready():
	case <-timer.C:
		l.logger.Warn().Dur("timeout", l.opts.ReadyTimeout).Msg("Remote channel not ready, continuing without waiting")
	case <-ctx.Done():
	}
}

// iterate runs one pass of the loop. Only cancellation of ctx is returned.
func (l *Loop) iterate(ctx context.Context) error {
	input, source, err := l.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			l.state.Exit = true
			return nil
		}
		l.report(err)
		l.readFailures++
		if l.readFailures >= maxReadFailures {
			l.logger.Error().Err(err).Int("failures", l.readFailures).Msg("Terminal input keeps failing, ending session")
			l.state.Exit = true
			return nil
		}
		timer := time.NewTimer(readRetryDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	l.readFailures = 0

	if source == sourceRegenerate {
		l.dispatch(ctx, input, true)
		return nil
	}

	input = strings.TrimSpace(input)
	if source == sourceTerminal {
		input = l.confirmCommand(ctx, input)
	}

	switch classify(input) {
	case kindEmpty:
		return nil
	case kindCommand:
		l.runCommand(ctx, input[1:])
		return nil
	case kindTag:
		query, ok := l.switchByTag(input[1:])
		if !ok {
			return nil
		}
		input = query
	}

	l.chat(ctx, input)
	return nil
}

// acquire returns the next input: a regeneration, a remote query or a terminal line
func (l *Loop) acquire(ctx context.Context) (string, inputSource, error) {
	if l.state.Regenerate {
		l.state.Regenerate = false
		if l.state.LastQuery != "" {
			return l.state.LastQuery, sourceRegenerate, nil
		}
	}

	for {
		query, ok, readToken := l.opts.Remote.Poll()
		if ok {
			l.term.Info(fmt.Sprintf("%s%s", l.prompt(), query))
			return query, sourceRemote, nil
		}

		readCtx, cancel := l.opContext(ctx, readToken)
		line, err := l.term.ReadLine(readCtx, l.prompt())
		cancel()
		switch {
		case err == nil:
			return line, sourceTerminal, nil
		case ctx.Err() != nil:
			return "", sourceTerminal, ctx.Err()
		case agent.IsCancellation(err):
			// Interrupted or a remote query arrived
			continue
		default:
			return "", sourceTerminal, err
		}
	}
}

func classify(input string) inputKind {
	switch {
	case input == "":
		return kindEmpty
	case strings.HasPrefix(input, "/"):
		return kindCommand
	case strings.HasPrefix(input, "@"):
		return kindTag
	default:
		return kindQuery
	}
}

// confirmCommand offers to run a bare command name as that command
func (l *Loop) confirmCommand(ctx context.Context, input string) string {
	if input == "" || strings.IndexFunc(input, unicode.IsSpace) >= 0 || classify(input) != kindQuery {
		return input
	}
	cmd, ok := l.opts.Router.Lookup(input)
	if !ok {
		return input
	}

	confirmCtx, cancel := l.opContext(ctx)
	defer cancel()
	yes, err := l.term.Confirm(confirmCtx, fmt.Sprintf("Run /%s as a command?", cmd.Name), true)
	if err != nil {
		return ""
	}
	if yes {
		return "/" + cmd.Name
	}
	return input
}

func (l *Loop) runCommand(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		l.report(fmt.Errorf("command name is missing"))
		return
	}

	cmdCtx, cancel := l.opContext(ctx)
	defer cancel()
	err := l.opts.Router.Execute(cmdCtx, line)
	observability.RecordCommand(err == nil)
	if err == nil || agent.IsCancellation(err) {
		return
	}
	l.report(err)
	if agent.ShouldTerminate(err) {
		l.fatal = err
		l.state.Exit = true
	}
}

// switchByTag handles "@name [query]" and returns the trailing query, if any
func (l *Loop) switchByTag(rest string) (string, bool) {
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		end = len(rest)
	}
	name, trailing := rest[:end], strings.TrimSpace(rest[end:])

	if name == "" {
		l.report(fmt.Errorf("agent name is missing after '@'"))
		return "", false
	}
	if l.opts.Registry.Len() == 0 {
		l.report(fmt.Errorf("no agents are loaded"))
		return "", false
	}
	target, ok := l.opts.Registry.Find(name)
	if !ok {
		l.report(fmt.Errorf("agent '%s' not found", name))
		return "", false
	}

	l.opts.Stack.SwitchTo(target)
	if trailing == "" {
		l.showLanding(target)
		return "", false
	}
	return trailing, true
}

// chat augments the query, runs the orchestrator gate and dispatches
func (l *Loop) chat(ctx context.Context, query string) {
	query, ok := l.augmentWithClipboard(ctx, query)
	if !ok {
		return
	}

	active := l.opts.Stack.Active()
	if active == nil {
		l.term.Warn("No active agent. Use @<name> or /agent use <name> to pick one.")
		return
	}

	ctx = l.delegate(ctx, active, query)
	l.dispatch(ctx, query, false)
}

// dispatch sends query to the active agent
func (l *Loop) dispatch(ctx context.Context, query string, regenerate bool) {
	active := l.opts.Stack.Active()
	if active == nil {
		l.term.Warn("No active agent. Use @<name> or /agent use <name> to pick one.")
		return
	}

	l.state.LastQuery = query
	l.state.LastAgent = active
	delegated := l.opts.Stack.Depth() > 1

	chatCtx, cancel := l.opContext(ctx)
	defer cancel()
	chatCtx = tracing.NewTurnContext(chatCtx, l.state.ID, active.Name())
	chatCtx, span := tracing.StartSpan(chatCtx, "agent.chat",
		attribute.String("agent", active.Name()),
		attribute.Bool("delegated", delegated),
		attribute.Bool("regenerate", regenerate),
	)

	sc := agent.SessionContext{
		SessionID:   l.state.ID,
		TurnID:      tracing.GetTurnID(chatCtx),
		Prompt:      active.Prompt(),
		Interactive: l.opts.Interactive,
		Regenerate:  regenerate,
	}

	turnLog := tracing.Logger(chatCtx, l.logger)
	turnLog.Debug().Bool("delegated", delegated).Bool("regenerate", regenerate).Msg("Dispatching query")

	start := time.Now()
	ok, err := active.Backend().Chat(chatCtx, query, sc)
	tracing.EndSpan(span, err)

	outcome := "ok"
	switch {
	case err != nil && agent.IsCancellation(err):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	case !ok:
		outcome = "self_check_failed"
	}
	elapsed := time.Since(start)
	observability.RecordChat(active.Name(), outcome, elapsed)
	turnLog.Debug().Str("outcome", outcome).Dur("duration", elapsed).Msg("Query served")
	l.state.LastResponse = agent.LastResponse(active.Backend())
	l.recordTurn(chatCtx, Turn{Agent: active.Name(), Query: query, Outcome: outcome, Delegated: delegated})

	switch outcome {
	case "cancelled":
		return
	case "error":
		l.report(err)
		if agent.ShouldTerminate(err) {
			l.fatal = err
			l.state.Exit = true
		}
	case "self_check_failed":
		l.term.Warn(fmt.Sprintf("Agent '%s' failed its self-check for this query.", active.Name()))
	}
}

func (l *Loop) recordTurn(ctx context.Context, turn Turn) {
	if l.opts.Transcript == nil {
		return
	}
	if err := l.opts.Transcript.Append(context.WithoutCancel(ctx), l.state.ID, turn); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to record turn")
	}
}

// opContext derives the context of one suspendable operation. It is cancelled by
// ctx, by the interrupt generation current at call time and by any extra token.
func (l *Loop) opContext(ctx context.Context, extra ...context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stops := make([]func() bool, 0, len(extra)+1)
	for _, token := range append([]context.Context{l.opts.Interrupt.Token()}, extra...) {
		if token == nil {
			continue
		}
		stops = append(stops, context.AfterFunc(token, cancel))
	}
	return opCtx, func() {
		for _, stop := range stops {
			stop()
		}
		cancel()
	}
}

func (l *Loop) prompt() string {
	active := l.opts.Stack.Active()
	if active == nil {
		return "> "
	}
	p := active.Prompt()
	if p == "" {
		p = active.Name()
	}
	if l.opts.Stack.Depth() > 1 {
		if below := l.opts.Stack.Agents()[0]; below != active {
			p = below.Name() + "/" + p
		}
	}
	return p + "> "
}

func (l *Loop) report(err error) {
	l.logger.Debug().Err(err).Msg("Reported error")
	l.term.Error(err.Error())
}
