package relay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the name of the settings file inside the agent config directory
const SettingsFile = "relay.yaml"

// SecretEnv overrides the secret from the settings file
const SecretEnv = "AGENTDESK_RELAY_SECRET"

// Settings configures the relay agent
type Settings struct {
	Endpoint     string        `yaml:"endpoint"`
	Secret       string        `yaml:"secret"`
	UserID       string        `yaml:"user_id"`
	UserName     string        `yaml:"user_name"`
	Description  string        `yaml:"description"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		Endpoint:     "https://directline.botframework.com",
		UserName:     "agentdesk",
		Description:  "Relays queries to a remote bot over Direct Line",
		ReplyTimeout: 60 * time.Second,
	}
}

// LoadSettings reads dir/relay.yaml on top of the defaults
func LoadSettings(dir string) (Settings, error) {
	settings := DefaultSettings()
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return settings, fmt.Errorf("failed to read relay settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return settings, fmt.Errorf("failed to parse relay settings: %w", err)
			}
		}
	}

	if secret := os.Getenv(SecretEnv); secret != "" {
		settings.Secret = secret
	}
	if settings.Secret == "" {
		return settings, fmt.Errorf("relay secret not configured (set %s or secret in %s)", SecretEnv, SettingsFile)
	}
	if settings.ReplyTimeout <= 0 {
		settings.ReplyTimeout = DefaultSettings().ReplyTimeout
	}
	return settings, nil
}
