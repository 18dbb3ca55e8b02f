package interactions

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/discord"
)

// State is the lifecycle of an interaction's first reply.
type State int32

const (
	StatePending State = iota
	StateSending
	StateSent
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink carries the first reply back on the webhook response. Send blocks
// until the transport has written the response or given up on it.
type Sink interface {
	Send(ctx context.Context, resp discord.InteractionResponse) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, resp discord.InteractionResponse) error

func (f SinkFunc) Send(ctx context.Context, resp discord.InteractionResponse) error {
	return f(ctx, resp)
}

// SideChannel is the REST surface used once the first reply is out.
// *discord.Client implements it.
type SideChannel interface {
	GetOriginalResponse(ctx context.Context, appID, token string) (*discord.Message, error)
	EditOriginalResponse(ctx context.Context, appID, token string, data discord.MessageData) (*discord.Message, error)
	CreateFollowup(ctx context.Context, appID, token string, data discord.MessageData) (*discord.Message, error)
	ExecuteWebhook(ctx context.Context, appID, token string, data discord.MessageData) error
}

// ResponseChannel owns one interaction's reply. Exactly one reply is
// accepted; edits and follow-ups are refused until it has been sent.
type ResponseChannel struct {
	sink          Sink
	rest          SideChannel
	events        *bus.Bus
	appID         string
	token         string
	interactionID string

	state atomic.Int32
}

// NewResponseChannel binds a channel to the interaction's credentials.
func NewResponseChannel(in *discord.Interaction, sink Sink, rest SideChannel, events *bus.Bus) *ResponseChannel {
	return &ResponseChannel{
		sink:          sink,
		rest:          rest,
		events:        events,
		appID:         in.ApplicationID,
		token:         in.Token,
		interactionID: in.ID,
	}
}

func (c *ResponseChannel) State() State {
	return State(c.state.Load())
}

// Respond sends the first reply. A second call, concurrent or not, gets
// ErrAlreadyResponded without touching the transport.
func (c *ResponseChannel) Respond(ctx context.Context, resp discord.InteractionResponse) error {
	if !c.state.CompareAndSwap(int32(StatePending), int32(StateSending)) {
		return ErrAlreadyResponded
	}
	if err := c.sink.Send(ctx, resp); err != nil {
		c.state.Store(int32(StateErrored))
		return fmt.Errorf("send interaction response: %w", err)
	}
	c.state.Store(int32(StateSent))
	return nil
}

// Reply answers with a message.
func (c *ResponseChannel) Reply(ctx context.Context, data discord.MessageData) error {
	return c.Respond(ctx, discord.Reply(data))
}

// Defer acknowledges now; the handler edits the original response later.
func (c *ResponseChannel) Defer(ctx context.Context, ephemeral bool) error {
	return c.Respond(ctx, discord.Deferred(ephemeral))
}

// Autocomplete answers an autocomplete request.
func (c *ResponseChannel) Autocomplete(ctx context.Context, choices []discord.Choice) error {
	return c.Respond(ctx, discord.Choices(choices))
}

func (c *ResponseChannel) ready() error {
	if c.State() != StateSent {
		return ErrNotResponded
	}
	return nil
}

func (c *ResponseChannel) publish(op string, err error) {
	c.events.Publish(bus.TopicSideChannelCall, bus.SideChannelEvent{
		InteractionID: c.interactionID,
		Operation:     op,
		OK:            err == nil,
	})
}

// GetOriginalResponse fetches the first reply. It requires StateSent and
// returns ErrNotResponded otherwise.
func (c *ResponseChannel) GetOriginalResponse(ctx context.Context) (*discord.Message, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	msg, err := c.rest.GetOriginalResponse(ctx, c.appID, c.token)
	c.publish("get_original", err)
	return msg, err
}

// EditOriginalResponse replaces the first reply. It requires StateSent.
func (c *ResponseChannel) EditOriginalResponse(ctx context.Context, data discord.MessageData) (*discord.Message, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	msg, err := c.rest.EditOriginalResponse(ctx, c.appID, c.token, data)
	c.publish("edit_original", err)
	return msg, err
}

// CreateFollowup posts an extra message and returns it. It requires StateSent.
func (c *ResponseChannel) CreateFollowup(ctx context.Context, data discord.MessageData) (*discord.Message, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	msg, err := c.rest.CreateFollowup(ctx, c.appID, c.token, data)
	c.publish("followup", err)
	return msg, err
}

// SendErrorFollowup posts an error notice after the first reply. It does
// not wait for the created message.
func (c *ResponseChannel) SendErrorFollowup(ctx context.Context, data discord.MessageData) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := c.rest.ExecuteWebhook(ctx, c.appID, c.token, data)
	c.publish("error_followup", err)
	return err
}
