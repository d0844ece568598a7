package assistant

import (
	"context"
	"fmt"
	"strings"
)

// Message is one entry of the conversation history
type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request contains the parameters of one completion call
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
}

// Provider is an LLM API backend
type Provider interface {
	// Complete returns the whole answer at once
	Complete(ctx context.Context, req Request) (string, error)

	// Stream calls onDelta for every chunk as it arrives and returns the full text
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)

	// Name returns the provider name
	Name() string
}

// ProviderFactory builds a provider from settings
type ProviderFactory func(s Settings) (Provider, error)

// NewProvider creates the provider named in s
func NewProvider(s Settings) (Provider, error) {
	switch strings.ToLower(s.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(s.APIKey, s.BaseURL), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(s.APIKey, s.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", s.Provider)
	}
}
