package assistant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the name of the settings file inside the agent config directory
const SettingsFile = "assistant.yaml"

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

// Settings configures the assistant agent
type Settings struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	MaxTokens    int    `yaml:"max_tokens,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		Provider:  ProviderOpenAI,
		Model:     defaultModels[ProviderOpenAI],
		MaxTokens: 1024,
	}
}

// LoadSettings reads dir/assistant.yaml. A missing file yields the defaults.
func LoadSettings(dir string) (Settings, error) {
	settings := DefaultSettings()
	if dir == "" {
		return settings, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read assistant settings: %w", err)
	}

	// Model is reset so a provider switch without a model picks that provider's default
	settings.Model = ""
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse assistant settings: %w", err)
	}

	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	model, known := defaultModels[settings.Provider]
	if !known {
		return settings, fmt.Errorf("unsupported provider: %q", settings.Provider)
	}
	if settings.Model == "" {
		settings.Model = model
	}
	return settings, nil
}

// SaveSettings writes s to dir/assistant.yaml
func SaveSettings(dir string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode assistant settings: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SettingsFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write assistant settings: %w", err)
	}
	return nil
}
