package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-plugin"

	"github.com/harun/agentdesk/pkg/agent"
)

// Handshake is used to verify that the agent process and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENTDESK_AGENT",
	MagicCookieValue: "agentdesk-agent-v1",
}

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]plugin.Plugin{
	"agent": &AgentPlugin{},
}

// AgentPlugin is the implementation of plugin.Plugin for agent backends
type AgentPlugin struct {
	Impl agent.Backend
}

func (p *AgentPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &AgentRPCServer{
		Impl:      p.Impl,
		calls:     make(map[string]context.CancelFunc),
		cancelled: make(map[string]time.Time),
	}, nil
}

func (p *AgentPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &AgentRPCClient{client: c}, nil
}

// ErrResp carries an error across the process boundary
type ErrResp struct {
	Message   string
	Cancelled bool
	Fatal     bool
	Terminate bool
}

func toErrResp(err error) ErrResp {
	if err == nil {
		return ErrResp{}
	}
	resp := ErrResp{Message: err.Error(), Cancelled: agent.IsCancellation(err)}
	var fatal *agent.SessionFatalError
	if errors.As(err, &fatal) {
		resp.Fatal = true
		resp.Terminate = fatal.Terminate
	}
	return resp
}

func (r ErrResp) err() error {
	switch {
	case r.Message == "" && !r.Cancelled && !r.Fatal:
		return nil
	case r.Cancelled:
		return fmt.Errorf("%w: %s", agent.ErrCancelled, r.Message)
	case r.Fatal:
		return agent.Fatal(errors.New(r.Message), r.Terminate)
	default:
		return errors.New(r.Message)
	}
}

// DescribeResp is the response for the Describe RPC call
type DescribeResp struct {
	Name           string
	Description    string
	DefaultPrompt  string
	CanOrchestrate bool
}

// InitializeArgs are the arguments for the Initialize RPC call
type InitializeArgs struct {
	CallID string
	Config agent.Config
}

// CommandsResp is the response for the Commands RPC call
type CommandsResp struct {
	Commands []agent.Command
}

// RunCommandArgs are the arguments for the RunCommand RPC call
type RunCommandArgs struct {
	CallID string
	Name   string
	Args   []string
}

// ChatArgs are the arguments for the Chat RPC call
type ChatArgs struct {
	CallID  string
	Input   string
	Session agent.SessionContext
}

// ChatResp is the response for the Chat RPC call
type ChatResp struct {
	OK    bool
	Error ErrResp
}

// FeedbackArgs are the arguments for the HandleFeedback RPC call
type FeedbackArgs struct {
	CallID   string
	Feedback agent.Feedback
}

// SelectAgentArgs are the arguments for the SelectAgent RPC call
type SelectAgentArgs struct {
	CallID       string
	Query        string
	Descriptions []string
}

// SelectAgentResp is the response for the SelectAgent RPC call
type SelectAgentResp struct {
	Index int
	Error ErrResp
}

// AgentRPCServer is the RPC server that AgentRPCClient talks to
type AgentRPCServer struct {
	Impl agent.Backend

	mu    sync.Mutex
	calls map[string]context.CancelFunc
	// cancelled holds IDs whose Cancel arrived before the call itself
	cancelled map[string]time.Time
}

// cancelTombstoneTTL bounds how long an early Cancel is remembered
const cancelTombstoneTTL = time.Minute

func (s *AgentRPCServer) begin(callID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	if callID == "" {
		return ctx, cancel
	}
	s.mu.Lock()
	if _, early := s.cancelled[callID]; early {
		delete(s.cancelled, callID)
		cancel()
	} else {
		s.calls[callID] = cancel
	}
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		delete(s.calls, callID)
		s.mu.Unlock()
		cancel()
	}
}

func (s *AgentRPCServer) Describe(args interface{}, resp *DescribeResp) error {
	_, canOrchestrate := agent.AsOrchestrator(s.Impl)
	*resp = DescribeResp{
		Name:           s.Impl.Name(),
		Description:    s.Impl.Description(),
		DefaultPrompt:  s.Impl.DefaultPrompt(),
		CanOrchestrate: canOrchestrate,
	}
	return nil
}

func (s *AgentRPCServer) Initialize(args *InitializeArgs, resp *ErrResp) error {
	ctx, done := s.begin(args.CallID)
	defer done()
	*resp = toErrResp(s.Impl.Initialize(ctx, args.Config))
	return nil
}

func (s *AgentRPCServer) Commands(args interface{}, resp *CommandsResp) error {
	resp.Commands = s.Impl.Commands()
	return nil
}

func (s *AgentRPCServer) RunCommand(args *RunCommandArgs, resp *ErrResp) error {
	ctx, done := s.begin(args.CallID)
	defer done()
	*resp = toErrResp(s.Impl.RunCommand(ctx, args.Name, args.Args))
	return nil
}

func (s *AgentRPCServer) Chat(args *ChatArgs, resp *ChatResp) error {
	ctx, done := s.begin(args.CallID)
	defer done()
	ok, err := s.Impl.Chat(ctx, args.Input, args.Session)
	resp.OK = ok
	resp.Error = toErrResp(err)
	return nil
}

func (s *AgentRPCServer) ResetChat(args interface{}, resp *ErrResp) error {
	s.Impl.ResetChat()
	return nil
}

func (s *AgentRPCServer) AcceptsFeedback(action agent.UserAction, resp *bool) error {
	*resp = s.Impl.AcceptsFeedback(action)
	return nil
}

func (s *AgentRPCServer) HandleFeedback(args *FeedbackArgs, resp *ErrResp) error {
	ctx, done := s.begin(args.CallID)
	defer done()
	*resp = toErrResp(s.Impl.HandleFeedback(ctx, args.Feedback))
	return nil
}

func (s *AgentRPCServer) SelectAgent(args *SelectAgentArgs, resp *SelectAgentResp) error {
	orch, ok := agent.AsOrchestrator(s.Impl)
	if !ok {
		resp.Index = agent.NoSuitableAgent
		return nil
	}
	ctx, done := s.begin(args.CallID)
	defer done()
	idx, err := orch.SelectAgent(ctx, args.Query, args.Descriptions)
	resp.Index = idx
	resp.Error = toErrResp(err)
	return nil
}

func (s *AgentRPCServer) LastResponse(args interface{}, resp *string) error {
	*resp = agent.LastResponse(s.Impl)
	return nil
}

// Cancel cancels the in-flight call registered under callID. An ID that is
// not in flight yet is remembered so the call starts out cancelled.
func (s *AgentRPCServer) Cancel(callID string, resp *bool) error {
	s.mu.Lock()
	cancel, ok := s.calls[callID]
	if !ok && callID != "" {
		now := time.Now()
		for id, at := range s.cancelled {
			if now.Sub(at) > cancelTombstoneTTL {
				delete(s.cancelled, id)
			}
		}
		s.cancelled[callID] = now
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
	*resp = ok
	return nil
}

// AgentRPCClient is the RPC client that talks to AgentRPCServer. It implements
// agent.Backend and agent.Orchestrator.
type AgentRPCClient struct {
	client *rpc.Client

	once     sync.Once
	describe DescribeResp
	descErr  error
}

func (c *AgentRPCClient) load() DescribeResp {
	c.once.Do(func() {
		c.descErr = c.client.Call("Plugin.Describe", new(interface{}), &c.describe)
	})
	return c.describe
}

// Err reports a failure of the initial Describe call
func (c *AgentRPCClient) Err() error {
	c.load()
	return c.descErr
}

func (c *AgentRPCClient) Name() string          { return c.load().Name }
func (c *AgentRPCClient) Description() string   { return c.load().Description }
func (c *AgentRPCClient) DefaultPrompt() string { return c.load().DefaultPrompt }

// CanOrchestrate reports whether the remote backend implements SelectAgent
func (c *AgentRPCClient) CanOrchestrate() bool { return c.load().CanOrchestrate }

// call issues an RPC that the remote side aborts when ctx is cancelled
func (c *AgentRPCClient) call(ctx context.Context, method string, args, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := c.client.Go(method, args, reply, make(chan *rpc.Call, 1)).Done
	select {
	case call := <-done:
		return call.Error
	case <-ctx.Done():
	}

	if id := callID(args); id != "" {
		var found bool
		_ = c.client.Call("Plugin.Cancel", id, &found)
	}
	return ctx.Err()
}

func callID(args interface{}) string {
	switch a := args.(type) {
	case *InitializeArgs:
		return a.CallID
	case *RunCommandArgs:
		return a.CallID
	case *ChatArgs:
		return a.CallID
	case *FeedbackArgs:
		return a.CallID
	case *SelectAgentArgs:
		return a.CallID
	}
	return ""
}

func (c *AgentRPCClient) Initialize(ctx context.Context, cfg agent.Config) error {
	var resp ErrResp
	if err := c.call(ctx, "Plugin.Initialize", &InitializeArgs{CallID: uuid.NewString(), Config: cfg}, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *AgentRPCClient) Commands() []agent.Command {
	var resp CommandsResp
	if err := c.client.Call("Plugin.Commands", new(interface{}), &resp); err != nil {
		return nil
	}
	return resp.Commands
}

func (c *AgentRPCClient) RunCommand(ctx context.Context, name string, args []string) error {
	var resp ErrResp
	if err := c.call(ctx, "Plugin.RunCommand", &RunCommandArgs{CallID: uuid.NewString(), Name: name, Args: args}, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *AgentRPCClient) Chat(ctx context.Context, input string, sc agent.SessionContext) (bool, error) {
	var resp ChatResp
	if err := c.call(ctx, "Plugin.Chat", &ChatArgs{CallID: uuid.NewString(), Input: input, Session: sc}, &resp); err != nil {
		return false, err
	}
	return resp.OK, resp.Error.err()
}

func (c *AgentRPCClient) ResetChat() {
	var resp ErrResp
	_ = c.client.Call("Plugin.ResetChat", new(interface{}), &resp)
}

func (c *AgentRPCClient) AcceptsFeedback(action agent.UserAction) bool {
	var resp bool
	if err := c.client.Call("Plugin.AcceptsFeedback", action, &resp); err != nil {
		return false
	}
	return resp
}

func (c *AgentRPCClient) HandleFeedback(ctx context.Context, fb agent.Feedback) error {
	var resp ErrResp
	if err := c.call(ctx, "Plugin.HandleFeedback", &FeedbackArgs{CallID: uuid.NewString(), Feedback: fb}, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *AgentRPCClient) LastResponse() string {
	var resp string
	if err := c.client.Call("Plugin.LastResponse", new(interface{}), &resp); err != nil {
		return ""
	}
	return resp
}

func (c *AgentRPCClient) SelectAgent(ctx context.Context, query string, descriptions []string) (int, error) {
	var resp SelectAgentResp
	args := &SelectAgentArgs{CallID: uuid.NewString(), Query: query, Descriptions: descriptions}
	if err := c.call(ctx, "Plugin.SelectAgent", args, &resp); err != nil {
		return agent.NoSuitableAgent, err
	}
	if err := resp.Error.err(); err != nil {
		return agent.NoSuitableAgent, err
	}
	return resp.Index, nil
}
