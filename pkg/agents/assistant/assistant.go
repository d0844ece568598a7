// Package assistant is a built-in chat agent backed by an LLM provider.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/agentdesk/pkg/agent"
)

// Name is the registry name of the agent
const Name = "assistant"

var (
	// ErrNotInitialized is returned when Chat runs before Initialize
	ErrNotInitialized = errors.New("assistant not initialized")

	selectionPattern = regexp.MustCompile(`-?\d+`)
)

// Option customizes an Agent
type Option func(*Agent)

// WithProviderFactory replaces the factory used to build the provider at Initialize
func WithProviderFactory(f ProviderFactory) Option {
	return func(a *Agent) {
		a.newProvider = f
	}
}

// Agent is an LLM chat agent that keeps its own conversation history
type Agent struct {
	out         io.Writer
	logger      zerolog.Logger
	newProvider ProviderFactory

	mu       sync.Mutex
	settings Settings
	provider Provider
	mode     agent.RenderMode
	wrapper  map[string]string
	history  []Message
	last     string
	// retryPending is set once the first of the two retry signals dropped the exchange
	retryPending bool
}

// New creates an assistant writing its answers to out
func New(out io.Writer, logger zerolog.Logger, opts ...Option) *Agent {
	a := &Agent{
		out:         out,
		logger:      logger.With().Str("component", "assistant").Logger(),
		newProvider: NewProvider,
		mode:        agent.RenderIncremental,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "General purpose assistant answering questions with a large language model"
}

func (a *Agent) DefaultPrompt() string { return Name }

// Initialize loads the settings file from the agent config directory and builds the provider
func (a *Agent) Initialize(ctx context.Context, cfg agent.Config) error {
	settings, err := LoadSettings(cfg.ConfigDir)
	if err != nil {
		return err
	}
	provider, err := a.newProvider(settings)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	a.provider = provider
	if cfg.RenderMode != "" {
		a.mode = cfg.RenderMode
	}
	a.wrapper = cfg.WrapperContext

	a.logger.Info().
		Str("provider", provider.Name()).
		Str("model", settings.Model).
		Str("render_mode", string(a.mode)).
		Msg("Assistant initialized")
	return nil
}

func (a *Agent) Commands() []agent.Command {
	return []agent.Command{
		{Name: "model", Description: "Show the provider and model in use", Usage: "/model"},
		{Name: "history", Description: "Show the number of turns in the conversation", Usage: "/history"},
	}
}

func (a *Agent) RunCommand(ctx context.Context, name string, args []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch name {
	case "model":
		if a.provider == nil {
			return ErrNotInitialized
		}
		fmt.Fprintf(a.out, "%s/%s\n", a.provider.Name(), a.settings.Model)
		return nil
	case "history":
		fmt.Fprintf(a.out, "%d turns\n", len(a.history)/2)
		return nil
	default:
		return fmt.Errorf("unknown assistant command: %s", name)
	}
}

// Chat sends input with the conversation history and writes the answer. An empty
// answer fails the self-check and leaves the history untouched.
func (a *Agent) Chat(ctx context.Context, input string, sc agent.SessionContext) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provider == nil {
		return false, ErrNotInitialized
	}
	if sc.Regenerate {
		a.retryExchange(input)
	} else {
		a.retryPending = false
	}

	req := Request{
		Model:        a.settings.Model,
		SystemPrompt: a.systemPrompt(),
		Messages:     append(append([]Message(nil), a.history...), Message{Role: RoleUser, Content: input}),
		MaxTokens:    a.settings.MaxTokens,
	}

	log := a.logger.With().Str("turn_id", sc.TurnID).Logger()
	log.Debug().Int("history", len(a.history)).Msg("Sending chat request")

	var (
		answer string
		err    error
	)
	if a.mode == agent.RenderIncremental {
		answer, err = a.provider.Stream(ctx, req, func(delta string) {
			_, _ = io.WriteString(a.out, delta)
		})
		if answer != "" {
			_, _ = io.WriteString(a.out, "\n")
		}
	} else {
		answer, err = a.provider.Complete(ctx, req)
		if err == nil && answer != "" {
			fmt.Fprintln(a.out, answer)
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%s request failed: %w", a.provider.Name(), err)
	}
	if strings.TrimSpace(answer) == "" {
		log.Warn().Msg("Provider returned an empty answer")
		return false, nil
	}

	a.history = append(a.history,
		Message{Role: RoleUser, Content: input},
		Message{Role: RoleAssistant, Content: answer},
	)
	a.last = answer
	return true, nil
}

func (a *Agent) ResetChat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.last = ""
	a.retryPending = false
}

// LastResponse returns the text of the last answer
func (a *Agent) LastResponse() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *Agent) AcceptsFeedback(action agent.UserAction) bool {
	return action == agent.ActionRetry
}

// HandleFeedback drops the last exchange on retry so the regenerated answer replaces it
func (a *Agent) HandleFeedback(ctx context.Context, fb agent.Feedback) error {
	if fb.Action != agent.ActionRetry {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retryExchange(fb.Query)
	return nil
}

// retryExchange handles one of the two signals of a retry: the feedback and the
// regenerated chat. They may arrive in either order. The first drops the last
// user/assistant pair when it answered query, the second only clears the mark.
// Callers hold a.mu.
func (a *Agent) retryExchange(query string) {
	if a.retryPending {
		a.retryPending = false
		return
	}
	a.retryPending = true

	n := len(a.history)
	if n < 2 || a.history[n-2].Role != RoleUser || a.history[n-2].Content != query {
		return
	}
	a.history = a.history[:n-2]
}

// SelectAgent asks the model which description fits query best
func (a *Agent) SelectAgent(ctx context.Context, query string, descriptions []string) (int, error) {
	a.mu.Lock()
	provider, model := a.provider, a.settings.Model
	a.mu.Unlock()

	if provider == nil {
		return agent.NoSuitableAgent, ErrNotInitialized
	}

	answer, err := provider.Complete(ctx, Request{
		Model:        model,
		SystemPrompt: selectionPrompt(descriptions),
		Messages:     []Message{{Role: RoleUser, Content: query}},
		MaxTokens:    16,
	})
	if err != nil {
		if ctx.Err() != nil {
			return agent.NoSuitableAgent, ctx.Err()
		}
		return agent.NoSuitableAgent, fmt.Errorf("selection request failed: %w", err)
	}
	return ParseSelection(answer)
}

// ParseSelection extracts the first integer of a selection answer
func ParseSelection(answer string) (int, error) {
	match := selectionPattern.FindString(answer)
	if match == "" {
		return agent.NoSuitableAgent, fmt.Errorf("no agent index in answer %q", answer)
	}
	idx, err := strconv.Atoi(match)
	if err != nil {
		return agent.NoSuitableAgent, fmt.Errorf("invalid agent index %q: %w", match, err)
	}
	if idx < 0 {
		return agent.NoSuitableAgent, nil
	}
	return idx, nil
}

func selectionPrompt(descriptions []string) string {
	var b strings.Builder
	b.WriteString("You route user queries to the agent best suited to answer them.\n")
	b.WriteString("Available agents:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i, d)
	}
	b.WriteString("Reply with the number of the best agent only, or -1 if none of them fits.")
	return b.String()
}

// systemPrompt combines the configured prompt with the wrapper context. Callers hold a.mu.
func (a *Agent) systemPrompt() string {
	if len(a.wrapper) == 0 {
		return a.settings.SystemPrompt
	}

	keys := make([]string, 0, len(a.wrapper))
	for k := range a.wrapper {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if a.settings.SystemPrompt != "" {
		b.WriteString(a.settings.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Context:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, a.wrapper[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
