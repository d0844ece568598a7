package session

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_ReadLine(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("first\r\nsecond\nlast"), &out)
	ctx := context.Background()

	line, err := c.ReadLine(ctx, "> ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = c.ReadLine(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = c.ReadLine(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = c.ReadLine(ctx, "")
	assert.ErrorIs(t, err, io.EOF)
	_, err = c.ReadLine(ctx, "")
	assert.ErrorIs(t, err, io.EOF)

	assert.True(t, strings.HasPrefix(out.String(), "> "))
}

func TestConsole_CancelledReadKeepsInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewConsole(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ReadLine(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() { _, _ = pw.Write([]byte("typed later\n")) }()

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	line, err := c.ReadLine(readCtx, "")
	require.NoError(t, err)
	assert.Equal(t, "typed later", line)
}

func TestConsole_Confirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\ny\n", false, true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			c := NewConsole(strings.NewReader(tt.input), io.Discard)
			got, err := c.Confirm(context.Background(), "Proceed?", tt.defaultYes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_Choose(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("0\nx\n2\n"), &out)

	idx, err := c.Choose(context.Background(), "Pick one:", []string{"shell", "azure"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Contains(t, out.String(), "  2. azure")
	assert.Contains(t, out.String(), "Invalid choice.")

	_, err = c.Choose(context.Background(), "Pick one:", nil)
	assert.ErrorIs(t, err, ErrNoChoice)
}

func TestConsole_Messages(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out)

	c.Info("hello")
	c.Warn("careful")
	c.Error("broken")

	assert.Equal(t, "hello\nwarning: careful\nerror: broken\n", out.String())
}
