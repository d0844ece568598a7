package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ChannelAccount identifies the sender of an activity
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Activity is one record of the conversation stream
type Activity struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	From      ChannelAccount `json:"from"`
	Text      string         `json:"text,omitempty"`
	ReplyToID string         `json:"replyToId,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// IsMessage reports whether the activity carries a message
func (a Activity) IsMessage() bool {
	return strings.EqualFold(a.Type, "message")
}

// FromSelf reports whether the activity was sent by selfID. Without a known id the
// "user" role marks the local side.
func (a Activity) FromSelf(selfID string) bool {
	if selfID != "" {
		return a.From.ID == selfID
	}
	return strings.EqualFold(a.From.Role, "user")
}

// Envelope is one logical message of the stream
type Envelope struct {
	Activities []Activity `json:"activities"`
	Watermark  string     `json:"watermark,omitempty"`
}

// ParseEnvelope decodes one envelope
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

// WatermarkValue returns the decimal watermark, if the envelope carries one
func (e *Envelope) WatermarkValue() (int64, bool, error) {
	if e.Watermark == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(e.Watermark, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid watermark %q: %w", e.Watermark, err)
	}
	return v, true, nil
}
