package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/agent/agenttest"
	"github.com/harun/agentdesk/pkg/interrupt"
)

// Scenario A
func TestSelectInitial_PromptsWhenUndecided(t *testing.T) {
	x, y := agenttest.NewFake("x"), agenttest.NewFake("y")
	env := newTestEnv(t, Options{}, x, y)
	env.term.choices = []int{0}

	chosen := env.loop.SelectInitial(context.Background(), Selection{})

	require.NotNil(t, chosen)
	assert.Same(t, env.agents[0], env.stack.Active())
	assert.Equal(t, 1, env.stack.Depth())
	assert.Equal(t, []string{"Select the agent to use:"}, env.term.questions)
}

func TestSelectInitial(t *testing.T) {
	t.Run("wrapper wins over default", func(t *testing.T) {
		env := newTestEnv(t, Options{}, agenttest.NewFake("shell"), agenttest.NewFake("azure"))
		env.loop.SelectInitial(context.Background(), Selection{Wrapper: "AZURE", Default: "shell"})
		assert.Same(t, env.agents[1], env.stack.Active())
		assert.Empty(t, env.term.questions)
	})

	t.Run("missing wrapper agent falls through to default", func(t *testing.T) {
		env := newTestEnv(t, Options{}, agenttest.NewFake("shell"), agenttest.NewFake("azure"))
		env.loop.SelectInitial(context.Background(), Selection{Wrapper: "gone", Default: "shell"})
		assert.Same(t, env.agents[0], env.stack.Active())
		assert.Contains(t, env.term.warns[0], "'gone' is not available")
	})

	t.Run("single agent is selected automatically", func(t *testing.T) {
		env := newTestEnv(t, Options{}, agenttest.NewFake("shell"))
		env.loop.SelectInitial(context.Background(), Selection{Default: "other"})
		assert.Same(t, env.agents[0], env.stack.Active())
		assert.Empty(t, env.term.questions)
	})

	t.Run("failures leave no active agent", func(t *testing.T) {
		env := newTestEnv(t, Options{}, agenttest.NewFake("shell"), agenttest.NewFake("azure"))
		// No scripted choice: Choose fails
		assert.Nil(t, env.loop.SelectInitial(context.Background(), Selection{}))
		assert.Nil(t, env.stack.Active())
	})

	t.Run("empty registry", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		assert.Nil(t, env.loop.SelectInitial(context.Background(), Selection{Default: "shell"}))
		assert.Contains(t, env.term.warns[0], "No agents are loaded")
	})
}

// Scenario B
func TestOrchestrator_DelegatesToSelectedAgent(t *testing.T) {
	var seen []string
	router := agenttest.NewFakeOrchestrator("router", func(ctx context.Context, query string, descriptions []string) (int, error) {
		seen = descriptions
		return 1, nil
	})
	a, b := agenttest.NewFake("a"), agenttest.NewFake("b")
	env := newTestEnv(t, Options{}, router, a, b)
	env.loop.SelectInitial(context.Background(), Selection{Default: "router"})
	routerResets := router.Resets()
	env.term.confirms = []bool{true}

	require.NoError(t, env.run(t, "deploy the app"))

	assert.Equal(t, 2, env.stack.Depth())
	assert.Same(t, env.agents[1], env.stack.Active())
	assert.Equal(t, []string{"router: router agent", "a: a agent", "b: b agent"}, seen)
	assert.Equal(t, []string{"deploy the app"}, a.Queries())
	assert.Empty(t, router.Queries())
	assert.Equal(t, 1, a.Resets())

	// Delegation persists until /return; no second gate at depth 2
	require.NoError(t, env.run(t, "and again", "/return"))
	assert.Equal(t, []string{"deploy the app", "and again"}, a.Queries())
	assert.Equal(t, 1, router.Selects())
	assert.Equal(t, 1, env.stack.Depth())
	assert.Same(t, env.agents[0], env.stack.Active())

	assert.Equal(t, 1, a.Resets())
	assert.Equal(t, routerResets, router.Resets())
}

func TestOrchestrator_NoSuitableAgentKeepsCurrent(t *testing.T) {
	router := agenttest.NewFakeOrchestrator("router", nil)
	a := agenttest.NewFake("a")
	env := newTestEnv(t, Options{}, router, a)
	env.stack.SwitchTo(env.agents[0])
	resets := router.Resets()
	env.term.confirms = []bool{true}

	require.NoError(t, env.run(t, "hello"))

	assert.Equal(t, 2, env.stack.Depth())
	assert.Same(t, env.agents[0], env.stack.Active())
	assert.Equal(t, []string{"hello"}, router.Queries())
	assert.Equal(t, resets, router.Resets())
}

// Scenario C
func TestOrchestrator_FailureDisablesRole(t *testing.T) {
	router := agenttest.NewFakeOrchestrator("router", func(context.Context, string, []string) (int, error) {
		return 0, errors.New("model returned garbage")
	})
	a := agenttest.NewFake("a")
	env := newTestEnv(t, Options{}, router, a)
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{true, true}

	require.NoError(t, env.run(t, "first", "second"))

	assert.Equal(t, 1, env.stack.Depth())
	assert.Same(t, env.agents[0], env.stack.Active())
	assert.True(t, env.agents[0].OrchestratorDisabled())
	assert.Equal(t, 1, router.Selects())
	assert.Len(t, env.term.questions, 1)
	assert.Equal(t, []string{"first", "second"}, router.Queries())
	assert.Contains(t, env.term.errs[0], "model returned garbage")
}

func TestOrchestrator_OutOfRangeDisablesRole(t *testing.T) {
	router := agenttest.NewFakeOrchestrator("router", func(context.Context, string, []string) (int, error) {
		return 7, nil
	})
	env := newTestEnv(t, Options{}, router, agenttest.NewFake("a"))
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{true}

	require.NoError(t, env.run(t, "q"))
	assert.True(t, env.agents[0].OrchestratorDisabled())
	assert.Equal(t, 1, env.stack.Depth())
}

func TestOrchestrator_CancellationLeavesStateUnchanged(t *testing.T) {
	router := agenttest.NewFakeOrchestrator("router", func(context.Context, string, []string) (int, error) {
		return 0, agent.ErrCancelled
	})
	env := newTestEnv(t, Options{}, router, agenttest.NewFake("a"))
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{true}

	require.NoError(t, env.run(t, "q"))
	assert.False(t, env.agents[0].OrchestratorDisabled())
	assert.Equal(t, 1, env.stack.Depth())
	assert.Empty(t, env.term.errs)
}

func TestOrchestrator_Gate(t *testing.T) {
	tests := []struct {
		name     string
		orch     bool
		depth    int
		disabled bool
		agents   int
		want     bool
	}{
		{"all conditions hold", true, 1, false, 2, true},
		{"not an orchestrator", false, 1, false, 2, false},
		{"already delegated", true, 2, false, 2, false},
		{"role disabled", true, 1, true, 2, false},
		{"single agent", true, 1, false, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var first agent.Backend = agenttest.NewFake("first")
			if tt.orch {
				first = agenttest.NewFakeOrchestrator("first", nil)
			}
			backends := []agent.Backend{first}
			for i := 1; i < tt.agents; i++ {
				backends = append(backends, agenttest.NewFake("other"))
			}
			env := newTestEnv(t, Options{}, backends...)
			env.stack.SwitchTo(env.agents[0])
			if tt.depth == 2 {
				require.NoError(t, env.stack.Push(env.agents[0]))
			}
			if tt.disabled {
				env.agents[0].DisableOrchestrator()
			}

			_, open := env.loop.gateOpen(env.agents[0])
			assert.Equal(t, tt.want, open)
		})
	}
}

func TestOrchestrator_DeclineLeavesStack(t *testing.T) {
	router := agenttest.NewFakeOrchestrator("router", func(context.Context, string, []string) (int, error) {
		return 1, nil
	})
	env := newTestEnv(t, Options{}, router, agenttest.NewFake("a"))
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{false}

	require.NoError(t, env.run(t, "q"))
	assert.Equal(t, 0, router.Selects())
	assert.Equal(t, 1, env.stack.Depth())
	assert.Equal(t, []string{"q"}, router.Queries())
}

func TestClipboard_OfferedOncePerSession(t *testing.T) {
	shell := agenttest.NewFake("shell")
	clip := &fakeClipboard{text: "  error CS0103: name does not exist  "}
	env := newTestEnv(t, Options{Clipboard: clip, ClipboardEnabled: true}, shell)
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{true}

	require.NoError(t, env.run(t, "why?", "and now?"))

	assert.Len(t, env.term.questions, 1)
	assert.Equal(t, []string{"why?\n\nerror CS0103: name does not exist", "and now?"}, shell.Queries())
}

func TestClipboard_DeclinedStillCountsAsOffered(t *testing.T) {
	shell := agenttest.NewFake("shell")
	clip := &fakeClipboard{text: "stack trace"}
	env := newTestEnv(t, Options{Clipboard: clip, ClipboardEnabled: true}, shell)
	env.stack.SwitchTo(env.agents[0])
	env.term.confirms = []bool{false}

	require.NoError(t, env.run(t, "one", "two"))
	assert.Len(t, env.term.questions, 1)
	assert.Equal(t, []string{"one", "two"}, shell.Queries())
}

func TestClipboard_InterruptAbandonsTurn(t *testing.T) {
	ctrl := interrupt.New(context.Background(), zerolog.Nop())
	shell := agenttest.NewFake("shell")
	env := newTestEnv(t, Options{Clipboard: &fakeClipboard{text: "panic: nil map"}, ClipboardEnabled: true, Interrupt: ctrl}, shell)
	env.stack.SwitchTo(env.agents[0])
	env.term.onConfirm = func(ctx context.Context) error {
		ctrl.Interrupt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("confirmation was not interrupted")
		}
	}

	require.NoError(t, env.run(t, "why?", "next"))

	assert.Len(t, env.term.questions, 1)
	assert.Equal(t, []string{"next"}, shell.Queries())
	assert.Equal(t, uint64(1), ctrl.Generation())
}

func TestClipboard_Skipped(t *testing.T) {
	t.Run("contained in the query", func(t *testing.T) {
		shell := agenttest.NewFake("shell")
		env := newTestEnv(t, Options{Clipboard: &fakeClipboard{text: "ls -la"}, ClipboardEnabled: true}, shell)
		env.stack.SwitchTo(env.agents[0])

		require.NoError(t, env.run(t, "what does ls -la do"))
		assert.Empty(t, env.term.questions)
	})

	t.Run("inside a code block of the previous response", func(t *testing.T) {
		shell := agenttest.NewFake("shell")
		env := newTestEnv(t, Options{Clipboard: &fakeClipboard{text: "Get-Process | Sort-Object CPU"}, ClipboardEnabled: true}, shell)
		env.stack.SwitchTo(env.agents[0])
		env.loop.State().LastResponse = "Run this:\n```powershell\nGet-Process | Sort-Object CPU\n```\n"

		require.NoError(t, env.run(t, "first"))
		assert.Empty(t, env.term.questions)
		assert.Equal(t, []string{"first"}, shell.Queries())
	})

	t.Run("feature disabled", func(t *testing.T) {
		shell := agenttest.NewFake("shell")
		env := newTestEnv(t, Options{Clipboard: &fakeClipboard{text: "x"}}, shell)
		env.stack.SwitchTo(env.agents[0])

		require.NoError(t, env.run(t, "q"))
		assert.Empty(t, env.term.questions)
	})
}
