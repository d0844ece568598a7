package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/pkg/agent/agenttest"
)

func setupTestTranscript(t *testing.T) (*Transcript, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "sessions")
	tr, err := NewTranscript(dir, zerolog.Nop())
	require.NoError(t, err)
	return tr, dir
}

func TestTranscript_AppendAndLoad(t *testing.T) {
	tr, _ := setupTestTranscript(t)
	ctx := context.Background()

	require.NoError(t, tr.Append(ctx, "s1", Turn{Agent: "shell", Query: "ls", Outcome: "ok"}))
	require.NoError(t, tr.Append(ctx, "s1", Turn{Agent: "azure", Query: "vms", Outcome: "error", Delegated: true}))

	turns, err := tr.Load("s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "ls", turns[0].Query)
	assert.False(t, turns[0].Timestamp.IsZero())
	assert.True(t, turns[1].Delegated)

	empty, err := tr.Load("unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTranscript_SkipsCorruptedLines(t *testing.T) {
	tr, dir := setupTestTranscript(t)
	require.NoError(t, tr.Append(context.Background(), "s1", Turn{Agent: "shell", Query: "ls"}))

	f, err := os.OpenFile(filepath.Join(dir, "s1.jsonl"), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	turns, err := tr.Load("s1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestTranscript_ValidatesSessionID(t *testing.T) {
	tr, _ := setupTestTranscript(t)

	for _, id := range []string{"", "../etc", "a/b", "a\\b", "a\x00b"} {
		assert.Error(t, tr.Append(context.Background(), id, Turn{Query: "q"}), id)
	}
}

func TestTranscript_ListAndPrune(t *testing.T) {
	tr, dir := setupTestTranscript(t)
	ctx := context.Background()
	require.NoError(t, tr.Append(ctx, "old", Turn{Query: "q"}))
	require.NoError(t, tr.Append(ctx, "new", Turn{Query: "q"}))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.jsonl"), past, past))

	sessions, err := tr.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)

	deleted, err := tr.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	sessions, err = tr.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new", sessions[0].ID)
}

func TestLoop_RecordsTranscript(t *testing.T) {
	tr, _ := setupTestTranscript(t)
	shell := agenttest.NewFake("shell")
	env := newTestEnv(t, Options{Transcript: tr}, shell)
	env.stack.SwitchTo(env.agents[0])

	require.NoError(t, env.run(t, "list files"))

	turns, err := tr.Load(env.loop.State().ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "shell", turns[0].Agent)
	assert.Equal(t, "ok", turns[0].Outcome)
}
