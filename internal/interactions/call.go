package interactions

import (
	"context"
	"log/slog"

	"github.com/basket/haxxor-bunny/internal/discord"
)

// Call is the handler's view of one invocation.
type Call struct {
	Channel     *ResponseChannel
	Interaction *discord.Interaction
	User        discord.User
	Command     string
	// Subcommand is the invoked subcommand path joined by spaces.
	Subcommand string
	Options    []discord.Option
	// Focused is set for autocomplete calls.
	Focused *discord.Option
	Logger  *slog.Logger
}

// Option returns the leaf option with the given name.
func (c *Call) Option(name string) (discord.Option, bool) {
	for _, o := range c.Options {
		if o.Name == name {
			return o, true
		}
	}
	return discord.Option{}, false
}

// Bind validates the leaf options against schema and decodes them into dst.
func (c *Call) Bind(schema *ArgSchema, dst any) error {
	return schema.Bind(c.Options, dst)
}

// ResolvedUser returns a user referenced by a user option.
func (c *Call) ResolvedUser(id string) (discord.User, bool) {
	if c.Interaction == nil || c.Interaction.Data == nil || c.Interaction.Data.Resolved == nil {
		return discord.User{}, false
	}
	u, ok := c.Interaction.Data.Resolved.Users[id]
	return u, ok
}

func (c *Call) Reply(ctx context.Context, data discord.MessageData) error {
	return c.Channel.Reply(ctx, data)
}

func (c *Call) Defer(ctx context.Context) error {
	return c.Channel.Defer(ctx, false)
}

// Edit replaces the deferred or original response.
func (c *Call) Edit(ctx context.Context, data discord.MessageData) error {
	_, err := c.Channel.EditOriginalResponse(ctx, data)
	return err
}

func (c *Call) Followup(ctx context.Context, data discord.MessageData) error {
	_, err := c.Channel.CreateFollowup(ctx, data)
	return err
}
