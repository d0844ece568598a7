package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/commands"
	"github.com/harun/agentdesk/pkg/plugin"
	"github.com/harun/agentdesk/pkg/remote"
	"github.com/harun/agentdesk/pkg/stack"
)

// scriptTerminal replays scripted operator input and records everything shown
type scriptTerminal struct {
	mu        sync.Mutex
	lines     []string
	confirms  []bool
	choices   []int
	questions []string
	infos     []string
	warns     []string
	errs      []string

	// the next failReads ReadLine calls return readErr
	failReads int
	readErr   error

	// onConfirm, when set, runs before a scripted answer is taken
	onConfirm func(ctx context.Context) error
}

func (s *scriptTerminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads > 0 {
		s.failReads--
		return "", s.readErr
	}
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptTerminal) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if s.onConfirm != nil {
		if err := s.onConfirm(ctx); err != nil {
			return false, err
		}
	}
	if len(s.confirms) == 0 {
		return false, nil
	}
	answer := s.confirms[0]
	s.confirms = s.confirms[1:]
	return answer, nil
}

func (s *scriptTerminal) Choose(ctx context.Context, title string, options []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, title)
	if len(s.choices) == 0 {
		return -1, io.EOF
	}
	choice := s.choices[0]
	s.choices = s.choices[1:]
	return choice, nil
}

func (s *scriptTerminal) Info(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, msg)
}

func (s *scriptTerminal) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, msg)
}

func (s *scriptTerminal) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

func (s *scriptTerminal) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(append(append(append([]string{}, s.infos...), s.warns...), s.errs...), "\n")
}

// queuedRemote delivers preloaded remote queries
type queuedRemote struct {
	mu      sync.Mutex
	queries []string
}

func (r *queuedRemote) Ready() <-chan struct{} { return remote.Nop{}.Ready() }

func (r *queuedRemote) Poll() (string, bool, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return "", false, context.Background()
	}
	q := r.queries[0]
	r.queries = r.queries[1:]
	return q, true, context.Background()
}

func (r *queuedRemote) Close() error { return nil }

// fakeClipboard is an in-memory clipboard
type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

type testEnv struct {
	loop     *Loop
	term     *scriptTerminal
	stack    *stack.Stack
	router   *commands.Router
	registry *plugin.AgentRegistry
	agents   []*agent.Agent
}

func newTestEnv(t *testing.T, opts Options, backends ...agent.Backend) *testEnv {
	t.Helper()

	registry := plugin.NewAgentRegistry()
	var agents []*agent.Agent
	for _, b := range backends {
		a := agent.New(b, nil)
		require.NoError(t, registry.Register(a))
		agents = append(agents, a)
	}

	router := commands.NewRouter(zerolog.Nop())
	st := stack.New(router, true, zerolog.Nop())
	term := &scriptTerminal{}

	opts.Registry = registry
	opts.Stack = st
	opts.Router = router
	opts.Terminal = term
	opts.Interactive = true
	opts.Logger = zerolog.Nop()
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 10 * time.Millisecond
	}

	loop, err := New(opts)
	require.NoError(t, err)

	return &testEnv{loop: loop, term: term, stack: st, router: router, registry: registry, agents: agents}
}

func (e *testEnv) run(t *testing.T, lines ...string) error {
	t.Helper()
	e.term.mu.Lock()
	e.term.lines = append(e.term.lines, lines...)
	e.term.mu.Unlock()
	e.loop.state.Exit = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.loop.Run(ctx)
}
