package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Conversation is the handle returned when a conversation starts
type Conversation struct {
	ID        string `json:"conversationId"`
	Token     string `json:"token"`
	StreamURL string `json:"streamUrl"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// Reaction is one entry of a messageReaction activity
type Reaction struct {
	Type string `json:"type"`
}

// OutgoingActivity is an activity posted by the local user
type OutgoingActivity struct {
	ID             string     `json:"id,omitempty"`
	Type           string     `json:"type"`
	From           Account    `json:"from"`
	Text           string     `json:"text,omitempty"`
	ReplyToID      string     `json:"replyToId,omitempty"`
	ReactionsAdded []Reaction `json:"reactionsAdded,omitempty"`
	Locale         string     `json:"locale,omitempty"`
}

// Account identifies the local user
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Client talks to the bot service REST endpoints
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewClient creates a client for endpoint authenticated with secret
func NewClient(endpoint, secret string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		secret:   secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StartConversation opens a new conversation
func (c *Client) StartConversation(ctx context.Context) (*Conversation, error) {
	var conv Conversation
	if err := c.post(ctx, c.endpoint+"/v3/directline/conversations", c.secret, nil, &conv); err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}
	if conv.ID == "" || conv.StreamURL == "" {
		return nil, fmt.Errorf("failed to start conversation: incomplete response")
	}
	return &conv, nil
}

// PostActivity sends activity into conv and returns the id assigned by the service
func (c *Client) PostActivity(ctx context.Context, conv *Conversation, activity OutgoingActivity) (string, error) {
	token := conv.Token
	if token == "" {
		token = c.secret
	}

	var result struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/v3/directline/conversations/%s/activities", c.endpoint, conv.ID)
	if err := c.post(ctx, url, token, activity, &result); err != nil {
		return "", fmt.Errorf("failed to post activity: %w", err)
	}
	return result.ID, nil
}

func (c *Client) post(ctx context.Context, url, token string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
