package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := executeCommand(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "interactive configuration wizard")
	})

	t.Run("saves the answers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentdesk.json")
		answers := strings.Join([]string{
			"assistant, relay",
			"relay",
			"localhost:6379",
			"n",
			"debug",
		}, "\n") + "\n"

		output, err := executeCommand(t, answers, "configure", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, output, "Configuration saved to: "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"assistant", "relay"}, cfg.BuiltinAgents)
		assert.Equal(t, "relay", cfg.DefaultAgent)
		assert.Equal(t, "localhost:6379", cfg.Remote.RedisAddr)
		assert.False(t, cfg.Features.Clipboard)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("keeps defaults on empty answers", func(t *testing.T) {
		path := writeConfig(t, func(cfg *config.Config) {
			cfg.DefaultAgent = "assistant"
		})

		_, err := executeCommand(t, "\n\n\n\n\n", "configure", "--config", path)
		require.NoError(t, err)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "assistant", cfg.DefaultAgent)
		assert.Equal(t, []string{"assistant"}, cfg.BuiltinAgents)
	})
}
