// Package relay is a built-in agent forwarding queries to a remote bot over a
// Direct Line style service: REST for outgoing activities, a websocket stream for replies.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/agentdesk/pkg/agent"
	"github.com/harun/agentdesk/pkg/stream"
)

// Name is the registry name of the agent
const Name = "relay"

// ErrNoReply is returned when the bot stays silent past the reply timeout
var ErrNoReply = errors.New("no reply from bot")

// DialFunc opens the activity stream of a conversation
type DialFunc func(ctx context.Context, url string, opts stream.Options) (*stream.Receiver, error)

// Agent relays chat turns to a remote bot
type Agent struct {
	out    io.Writer
	logger zerolog.Logger
	dial   DialFunc

	mu       sync.Mutex
	settings Settings
	client   *Client
	userID   string
	conv     *Conversation
	recv     *stream.Receiver
	last     string
	lastID   string
}

// New creates a relay agent writing bot replies to out
func New(out io.Writer, logger zerolog.Logger) *Agent {
	return &Agent{
		out:    out,
		logger: logger.With().Str("component", "relay").Logger(),
		dial:   stream.Dial,
	}
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings.Description != "" {
		return a.settings.Description
	}
	return DefaultSettings().Description
}

func (a *Agent) DefaultPrompt() string { return Name }

// Initialize reads the settings. The conversation itself starts lazily on the first chat.
func (a *Agent) Initialize(ctx context.Context, cfg agent.Config) error {
	settings, err := LoadSettings(cfg.ConfigDir)
	if err != nil {
		return err
	}

	userID := settings.UserID
	if userID == "" {
		if userID, err = gonanoid.New(); err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		userID = "dl_" + userID
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	a.userID = userID
	a.client = NewClient(settings.Endpoint, settings.Secret, settings.ReplyTimeout)
	a.logger.Info().Str("endpoint", settings.Endpoint).Str("user_id", userID).Msg("Relay initialized")
	return nil
}

func (a *Agent) Commands() []agent.Command {
	return []agent.Command{
		{Name: "conversation", Description: "Show the current conversation id", Usage: "/conversation"},
		{Name: "restart", Description: "Start a fresh conversation with the bot", Usage: "/restart"},
	}
}

func (a *Agent) RunCommand(ctx context.Context, name string, args []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch name {
	case "conversation":
		if a.conv == nil {
			fmt.Fprintln(a.out, "no conversation")
			return nil
		}
		wm, ok := a.recv.Watermark()
		if ok {
			fmt.Fprintf(a.out, "%s (watermark %d)\n", a.conv.ID, wm)
		} else {
			fmt.Fprintln(a.out, a.conv.ID)
		}
		return nil
	case "restart":
		a.closeConversation()
		return nil
	default:
		return fmt.Errorf("unknown relay command: %s", name)
	}
}

// Chat posts input as a message activity and waits for the bot's reply. A dropped
// stream is reported and the next chat starts a new conversation.
func (a *Agent) Chat(ctx context.Context, input string, sc agent.SessionContext) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return false, errors.New("relay not initialized")
	}
	if err := a.ensureConversation(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}

	activity, err := a.newActivity("message")
	if err != nil {
		return false, err
	}
	activity.Text = input

	postedID, err := a.client.PostActivity(ctx, a.conv, activity)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	a.logger.Debug().Str("turn_id", sc.TurnID).Str("activity_id", postedID).Msg("Posted activity")

	reply, err := a.awaitReply(ctx, postedID, activity.ID)
	if err != nil {
		return false, err
	}

	fmt.Fprintln(a.out, reply.Text)
	a.last = reply.Text
	a.lastID = reply.ID
	return true, nil
}

// awaitReply takes activities until a message answering the posted one arrives.
// Callers hold a.mu.
func (a *Agent) awaitReply(ctx context.Context, ids ...string) (stream.Activity, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.settings.ReplyTimeout)
	defer cancel()

	for {
		activity, err := a.recv.Take(waitCtx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return stream.Activity{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return stream.Activity{}, fmt.Errorf("%w within %s", ErrNoReply, a.settings.ReplyTimeout)
		default:
			// dropped or exhausted stream: the next chat reconnects
			a.logger.Warn().Err(err).Str("conversation_id", a.conv.ID).Msg("Conversation stream lost")
			a.closeConversation()
			if !errors.Is(err, stream.ErrConnectionDropped) {
				err = fmt.Errorf("%w: %v", stream.ErrConnectionDropped, err)
			}
			return stream.Activity{}, err
		}

		if !activity.IsMessage() || activity.Text == "" {
			continue
		}
		if activity.ReplyToID != "" && !matchesAny(activity.ReplyToID, ids) {
			a.logger.Debug().Str("reply_to", activity.ReplyToID).Msg("Skipping reply to an earlier activity")
			continue
		}
		return activity, nil
	}
}

func matchesAny(id string, ids []string) bool {
	for _, candidate := range ids {
		if candidate != "" && candidate == id {
			return true
		}
	}
	return false
}

// ensureConversation starts a conversation and dials its stream when none is live.
// Callers hold a.mu.
func (a *Agent) ensureConversation(ctx context.Context) error {
	if a.conv != nil {
		return nil
	}

	conv, err := a.client.StartConversation(ctx)
	if err != nil {
		return err
	}

	token := conv.Token
	if token == "" {
		token = a.settings.Secret
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	recv, err := a.dial(ctx, conv.StreamURL, stream.Options{
		UserID: a.userID,
		Header: header,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	a.conv = conv
	a.recv = recv
	a.logger.Info().Str("conversation_id", conv.ID).Msg("Conversation started")
	return nil
}

// closeConversation drops the live conversation. Callers hold a.mu.
func (a *Agent) closeConversation() {
	if a.recv != nil {
		_ = a.recv.Close()
	}
	a.recv = nil
	a.conv = nil
	a.last = ""
	a.lastID = ""
}

func (a *Agent) newActivity(kind string) (OutgoingActivity, error) {
	id, err := gonanoid.New()
	if err != nil {
		return OutgoingActivity{}, fmt.Errorf("failed to generate activity id: %w", err)
	}
	return OutgoingActivity{
		ID:   id,
		Type: kind,
		From: Account{ID: a.userID, Name: a.settings.UserName, Role: "user"},
	}, nil
}

// ResetChat ends the conversation; the bot keeps no context across conversations
func (a *Agent) ResetChat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeConversation()
}

// LastResponse returns the text of the last bot reply
func (a *Agent) LastResponse() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *Agent) AcceptsFeedback(action agent.UserAction) bool {
	return action == agent.ActionLike || action == agent.ActionDislike
}

// HandleFeedback posts a messageReaction on the last reply
func (a *Agent) HandleFeedback(ctx context.Context, fb agent.Feedback) error {
	if !a.AcceptsFeedback(fb.Action) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conv == nil || a.lastID == "" {
		return nil
	}

	activity, err := a.newActivity("messageReaction")
	if err != nil {
		return err
	}
	activity.ReplyToID = a.lastID
	activity.ReactionsAdded = []Reaction{{Type: string(fb.Action)}}
	activity.Text = fb.Comment

	if _, err := a.client.PostActivity(ctx, a.conv, activity); err != nil {
		a.logger.Warn().Err(err).Str("action", string(fb.Action)).Msg("Failed to post reaction")
		return err
	}
	return nil
}

// Close releases the live conversation
func (a *Agent) Close() error {
	a.ResetChat()
	return nil
}
