package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"assistant"}, cfg.BuiltinAgents)
	assert.True(t, cfg.Features.Clipboard)
	assert.Equal(t, "agentdesk:queries", cfg.Remote.Queue)
	assert.Equal(t, 3*time.Second, cfg.Remote.ReadyTimeout)
	assert.False(t, cfg.Remote.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.DataDir = "/tmp/agentdesk"
		cfg.ConfigDir = "/tmp/agentdesk/agent-config"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with paths", mutate: func(*Config) {}},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: "data_dir"},
		{name: "missing config dir", mutate: func(c *Config) { c.ConfigDir = "" }, wantErr: "config_dir"},
		{
			name: "no agent sources",
			mutate: func(c *Config) {
				c.BuiltinAgents = nil
				c.PluginDirs = nil
			},
			wantErr: "no agent sources",
		},
		{name: "duplicate builtin", mutate: func(c *Config) { c.BuiltinAgents = []string{"assistant", "Assistant"} }, wantErr: "listed twice"},
		{name: "blank builtin", mutate: func(c *Config) { c.BuiltinAgents = []string{" "} }, wantErr: "name is required"},
		{
			name: "remote without queue",
			mutate: func(c *Config) {
				c.Remote.RedisAddr = "localhost:6379"
				c.Remote.Queue = ""
			},
			wantErr: "remote.queue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	out := cfg.String()

	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"builtin_agents"`)
	assert.Contains(t, out, `"redis_addr"`)
}
