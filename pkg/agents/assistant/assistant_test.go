package assistant

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/pkg/agent"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	args := m.Called(ctx, req, onDelta)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Name() string { return "mock" }

func newTestAgent(t *testing.T, provider Provider, cfg agent.Config) (*Agent, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	a := New(out, zerolog.Nop(), WithProviderFactory(func(Settings) (Provider, error) {
		return provider, nil
	}))
	require.NoError(t, a.Initialize(context.Background(), cfg))
	return a, out
}

func historyLen(n int) interface{} {
	return mock.MatchedBy(func(req Request) bool { return len(req.Messages) == n })
}

func TestAgent_ChatFullMode(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, historyLen(1)).Return("first answer", nil).Once()
	provider.On("Complete", mock.Anything, historyLen(3)).Return("second answer", nil).Once()

	a, out := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

	ok, err := a.Chat(context.Background(), "hello", agent.SessionContext{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Chat(context.Background(), "again", agent.SessionContext{})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "first answer\nsecond answer\n", out.String())
	assert.Equal(t, "second answer", a.LastResponse())
	provider.AssertExpectations(t)
}

func TestAgent_ChatIncrementalMode(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Stream", mock.Anything, historyLen(1), mock.Anything).
		Run(func(args mock.Arguments) {
			onDelta := args.Get(2).(func(string))
			onDelta("hel")
			onDelta("lo")
		}).
		Return("hello", nil)

	a, out := newTestAgent(t, provider, agent.Config{})

	ok, err := a.Chat(context.Background(), "hi", agent.SessionContext{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello\n", out.String())
}

func TestAgent_ChatFailures(t *testing.T) {
	t.Run("empty answer fails the self-check", func(t *testing.T) {
		provider := &mockProvider{}
		provider.On("Complete", mock.Anything, mock.Anything).Return("  ", nil)
		a, _ := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

		ok, err := a.Chat(context.Background(), "hi", agent.SessionContext{})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, a.history)
	})

	t.Run("provider error is wrapped", func(t *testing.T) {
		provider := &mockProvider{}
		provider.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))
		a, _ := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

		_, err := a.Chat(context.Background(), "hi", agent.SessionContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
		assert.False(t, agent.IsCancellation(err))
	})

	t.Run("cancellation surfaces the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := &mockProvider{}
		provider.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("request aborted"))
		a, _ := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

		_, err := a.Chat(ctx, "hi", agent.SessionContext{})
		assert.True(t, agent.IsCancellation(err))
	})

	t.Run("chat before initialize", func(t *testing.T) {
		a := New(&bytes.Buffer{}, zerolog.Nop())
		_, err := a.Chat(context.Background(), "hi", agent.SessionContext{})
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestAgent_ResetChat(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, historyLen(1)).Return("answer", nil).Twice()
	a, _ := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

	_, err := a.Chat(context.Background(), "one", agent.SessionContext{})
	require.NoError(t, err)

	a.ResetChat()
	assert.Empty(t, a.LastResponse())

	_, err = a.Chat(context.Background(), "two", agent.SessionContext{})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestAgent_Retry(t *testing.T) {
	tests := []struct {
		name          string
		feedbackFirst bool
	}{
		{name: "feedback before regenerated chat", feedbackFirst: true},
		{name: "regenerated chat before feedback", feedbackFirst: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			provider.On("Complete", mock.Anything, historyLen(1)).Return("answer", nil)
			a, _ := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

			_, err := a.Chat(context.Background(), "question", agent.SessionContext{})
			require.NoError(t, err)

			retry := agent.Feedback{Action: agent.ActionRetry, Query: "question"}
			regen := agent.SessionContext{Regenerate: true}
			if tt.feedbackFirst {
				require.NoError(t, a.HandleFeedback(context.Background(), retry))
				_, err = a.Chat(context.Background(), "question", regen)
			} else {
				_, err = a.Chat(context.Background(), "question", regen)
				require.NoError(t, a.HandleFeedback(context.Background(), retry))
			}
			require.NoError(t, err)

			// the regenerated exchange replaced the first one
			assert.Len(t, a.history, 2)
			provider.AssertNumberOfCalls(t, "Complete", 2)
		})
	}

	t.Run("only retry is accepted", func(t *testing.T) {
		a := New(&bytes.Buffer{}, zerolog.Nop())
		assert.True(t, a.AcceptsFeedback(agent.ActionRetry))
		assert.False(t, a.AcceptsFeedback(agent.ActionLike))
		assert.False(t, a.AcceptsFeedback(agent.ActionCopy))
	})
}

func TestAgent_SelectAgent(t *testing.T) {
	descriptions := []string{"shell: runs commands", "azure: manages cloud resources"}

	tests := []struct {
		name    string
		answer  string
		want    int
		wantErr bool
	}{
		{name: "plain index", answer: "1", want: 1},
		{name: "index in prose", answer: "Agent 0 fits best.", want: 0},
		{name: "no suitable agent", answer: "-1", want: agent.NoSuitableAgent},
		{name: "out of range is passed through", answer: "7", want: 7},
		{name: "no number", answer: "none", want: agent.NoSuitableAgent, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			provider.On("Complete", mock.Anything, mock.MatchedBy(func(req Request) bool {
				return len(req.Messages) == 1 && req.Messages[0].Content == "create a vm" &&
					strings.Contains(req.SystemPrompt, "0. shell") &&
					strings.Contains(req.SystemPrompt, "1. azure")
			})).Return(tt.answer, nil)
			a, _ := newTestAgent(t, provider, agent.Config{})

			idx, err := a.SelectAgent(context.Background(), "create a vm", descriptions)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, idx)
		})
	}

	t.Run("selection does not touch the history", func(t *testing.T) {
		provider := &mockProvider{}
		provider.On("Complete", mock.Anything, mock.Anything).Return("0", nil)
		a, _ := newTestAgent(t, provider, agent.Config{})

		_, err := a.SelectAgent(context.Background(), "q", descriptions)
		require.NoError(t, err)
		assert.Empty(t, a.history)
		assert.Empty(t, a.LastResponse())
	})
}

func TestAgent_Commands(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return("answer", nil)
	a, out := newTestAgent(t, provider, agent.Config{RenderMode: agent.RenderFull})

	names := []string{}
	for _, c := range a.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"model", "history"}, names)

	require.NoError(t, a.RunCommand(context.Background(), "model", nil))
	assert.Equal(t, "mock/gpt-4o-mini\n", out.String())

	_, err := a.Chat(context.Background(), "hi", agent.SessionContext{})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, a.RunCommand(context.Background(), "history", nil))
	assert.Equal(t, "1 turns\n", out.String())

	assert.Error(t, a.RunCommand(context.Background(), "deploy", nil))
}

func TestAgent_InitializeReadsSettings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte(
		"provider: anthropic\napi_key: secret\nsystem_prompt: Be brief.\n"), 0o600))

	var got Settings
	a := New(&bytes.Buffer{}, zerolog.Nop(), WithProviderFactory(func(s Settings) (Provider, error) {
		got = s
		return &mockProvider{}, nil
	}))
	require.NoError(t, a.Initialize(context.Background(), agent.Config{
		ConfigDir:      dir,
		WrapperContext: map[string]string{"team": "infra", "env": "prod"},
	}))

	assert.Equal(t, ProviderAnthropic, got.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
	assert.Equal(t, "Be brief.\n\nContext:\nenv: prod\nteam: infra", a.systemPrompt())
}

func TestAgent_InitializeRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("provider: gemini\n"), 0o600))

	a := New(&bytes.Buffer{}, zerolog.Nop())
	err := a.Initialize(context.Background(), agent.Config{ConfigDir: dir})
	assert.ErrorContains(t, err, "unsupported provider")
}
