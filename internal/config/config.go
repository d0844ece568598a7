package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the main agentdesk configuration
type Config struct {
	// Data directory for logs and transcripts
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Root of the per-agent configuration directories
	ConfigDir string `json:"config_dir" mapstructure:"config_dir"`

	// Directories scanned for agent plugins
	PluginDirs []string `json:"plugin_dirs" mapstructure:"plugin_dirs"`

	// Compiled-in agents to load, in order
	BuiltinAgents []string `json:"builtin_agents" mapstructure:"builtin_agents"`

	// Agent activated at startup when no wrapper names one
	DefaultAgent string `json:"default_agent" mapstructure:"default_agent"`

	Features FeaturesConfig `json:"features" mapstructure:"features"`
	Remote   RemoteConfig   `json:"remote" mapstructure:"remote"`
	Session  SessionConfig  `json:"session" mapstructure:"session"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`
}

// FeaturesConfig toggles optional session behaviour
type FeaturesConfig struct {
	Clipboard bool `json:"clipboard" mapstructure:"clipboard"`
}

// RemoteConfig holds the remote query channel settings
type RemoteConfig struct {
	RedisAddr     string        `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `json:"redis_db" mapstructure:"redis_db"`
	Queue         string        `json:"queue" mapstructure:"queue"`
	ReadyTimeout  time.Duration `json:"ready_timeout" mapstructure:"ready_timeout"`
}

// Enabled reports whether a redis address is configured
func (r RemoteConfig) Enabled() bool {
	return strings.TrimSpace(r.RedisAddr) != ""
}

// SessionConfig holds transcript settings
type SessionConfig struct {
	Transcripts bool `json:"transcripts" mapstructure:"transcripts"`
	// Transcripts older than this are pruned at startup; zero keeps everything
	TranscriptMaxAge time.Duration `json:"transcript_max_age" mapstructure:"transcript_max_age"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the metrics listener settings
type MetricsConfig struct {
	// Addr of the /metrics listener; empty disables it
	Addr string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		PluginDirs:    []string{},
		BuiltinAgents: []string{"assistant"},
		DefaultAgent:  "",
		Features: FeaturesConfig{
			Clipboard: true,
		},
		Remote: RemoteConfig{
			Queue:        "agentdesk:queries",
			ReadyTimeout: 3 * time.Second,
		},
		Session: SessionConfig{
			Transcripts:      true,
			TranscriptMaxAge: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   false,
			Pretty:    false,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "agentdesk",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir is required")
	}
	if len(c.BuiltinAgents) == 0 && len(c.PluginDirs) == 0 {
		return fmt.Errorf("no agent sources configured: set builtin_agents or plugin_dirs")
	}

	seen := make(map[string]bool)
	for i, name := range c.BuiltinAgents {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return fmt.Errorf("builtin agent %d: name is required", i)
		}
		if seen[key] {
			return fmt.Errorf("builtin agent %s listed twice", name)
		}
		seen[key] = true
	}

	if c.Remote.Enabled() && c.Remote.Queue == "" {
		return fmt.Errorf("remote.queue is required when remote.redis_addr is set")
	}
	return nil
}
