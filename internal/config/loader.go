package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appDir     = ".agentdesk"
	configFile = "agentdesk.json"
	envPrefix  = "AGENTDESK"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

func (l *Loader) newViper() (*viper.Viper, string, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, appDir, configFile)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	return v, configPath, nil
}

// Load loads the configuration from file, environment and defaults
func (l *Loader) Load() (*Config, error) {
	v, configPath, err := l.newViper()
	if err != nil {
		return nil, err
	}

	// Environment variables override the file, e.g. AGENTDESK_REMOTE_REDIS_ADDR
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	bindDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set data directory if not specified
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}

	if cfg.ConfigDir == "" {
		cfg.ConfigDir = filepath.Join(cfg.DataDir, "agent-config")
	}

	if len(cfg.PluginDirs) == 0 {
		cfg.PluginDirs = []string{filepath.Join(cfg.DataDir, "agents")}
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "agentdesk.log")
	}

	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	v, configPath, err := l.newViper()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v.Set("data_dir", cfg.DataDir)
	v.Set("config_dir", cfg.ConfigDir)
	v.Set("plugin_dirs", cfg.PluginDirs)
	v.Set("builtin_agents", cfg.BuiltinAgents)
	v.Set("default_agent", cfg.DefaultAgent)
	v.Set("features", cfg.Features)
	v.Set("remote", map[string]interface{}{
		"redis_addr":     cfg.Remote.RedisAddr,
		"redis_password": cfg.Remote.RedisPassword,
		"redis_db":       cfg.Remote.RedisDB,
		"queue":          cfg.Remote.Queue,
		"ready_timeout":  cfg.Remote.ReadyTimeout.String(),
	})
	v.Set("session", map[string]interface{}{
		"transcripts":        cfg.Session.Transcripts,
		"transcript_max_age": cfg.Session.TranscriptMaxAge.String(),
	})
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)

	// Write config file
	if err := v.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// SaveDefaultAgent rewrites default_agent in the config file. Only the
// file's own keys are written back, never environment overrides or defaults.
func (l *Loader) SaveDefaultAgent(name string) error {
	v, configPath, err := l.newViper()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	v.Set("default_agent", name)

	// WriteConfig creates the file when it is missing
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, appDir, configFile)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// bindDefaults registers every key so AutomaticEnv can resolve it on Unmarshal
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("config_dir", cfg.ConfigDir)
	v.SetDefault("plugin_dirs", cfg.PluginDirs)
	v.SetDefault("builtin_agents", cfg.BuiltinAgents)
	v.SetDefault("default_agent", cfg.DefaultAgent)
	v.SetDefault("features.clipboard", cfg.Features.Clipboard)
	v.SetDefault("remote.redis_addr", cfg.Remote.RedisAddr)
	v.SetDefault("remote.redis_password", cfg.Remote.RedisPassword)
	v.SetDefault("remote.redis_db", cfg.Remote.RedisDB)
	v.SetDefault("remote.queue", cfg.Remote.Queue)
	v.SetDefault("remote.ready_timeout", cfg.Remote.ReadyTimeout)
	v.SetDefault("session.transcripts", cfg.Session.Transcripts)
	v.SetDefault("session.transcript_max_age", cfg.Session.TranscriptMaxAge)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
}
