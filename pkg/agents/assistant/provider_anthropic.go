package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider. Empty values keep the SDK defaults,
// which read the key from the environment.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

func (p *AnthropicProvider) params(req Request) anthropic.MessageNewParams {
	messages := []anthropic.MessageParam{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	// max_tokens is mandatory for the messages API
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}
	return params
}

// Complete makes a blocking call to the messages API
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	response, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}
	return content.String(), nil
}

// Stream makes a streaming call and forwards text deltas
func (p *AnthropicProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if d, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
			text.WriteString(d.Text)
			if onDelta != nil {
				onDelta(d.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return text.String(), fmt.Errorf("anthropic streaming error: %w", err)
	}
	return text.String(), nil
}
