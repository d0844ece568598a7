package config

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("answers override the base config", func(t *testing.T) {
		answers := strings.Join([]string{
			"assistant, relay",
			"relay",
			"localhost:6379",
			"n",
			"debug",
		}, "\n") + "\n"
		out := &bytes.Buffer{}

		cfg, err := NewWizard(strings.NewReader(answers), out).Run(DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, []string{"assistant", "relay"}, cfg.BuiltinAgents)
		assert.Equal(t, "relay", cfg.DefaultAgent)
		assert.Equal(t, "localhost:6379", cfg.Remote.RedisAddr)
		assert.False(t, cfg.Features.Clipboard)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Contains(t, out.String(), "Configuration complete!")
	})

	t.Run("empty answers keep the defaults and invalid ones are asked again", func(t *testing.T) {
		answers := strings.Join([]string{
			"",
			"bad name",
			"-",
			"nohost",
			"",
			"",
			"loud",
		}, "\n") + "\n"
		out := &bytes.Buffer{}
		base := DefaultConfig()
		base.DefaultAgent = "assistant"

		cfg, err := NewWizard(strings.NewReader(answers), out).Run(base)
		require.NoError(t, err)

		assert.Equal(t, []string{"assistant"}, cfg.BuiltinAgents)
		assert.Empty(t, cfg.DefaultAgent)
		assert.Empty(t, cfg.Remote.RedisAddr)
		assert.True(t, cfg.Features.Clipboard)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Contains(t, out.String(), "invalid agent name")
		assert.Contains(t, out.String(), "expected host:port")
		assert.Contains(t, out.String(), "keeping info")
		// the base is not modified
		assert.Equal(t, "assistant", base.DefaultAgent)
	})

	t.Run("input ends early", func(t *testing.T) {
		_, err := NewWizard(strings.NewReader("assistant\n"), io.Discard).Run(DefaultConfig())
		assert.ErrorIs(t, err, io.EOF)
	})
}
