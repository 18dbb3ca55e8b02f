package interactions

import (
	"context"
	"fmt"

	"github.com/basket/haxxor-bunny/internal/discord"
)

// Handler runs one command invocation.
type Handler interface {
	Handle(ctx context.Context, call *Call) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call *Call) error

func (f HandlerFunc) Handle(ctx context.Context, call *Call) error { return f(ctx, call) }

// Autocompleter is implemented by handlers whose command has
// autocomplete options.
type Autocompleter interface {
	Autocomplete(ctx context.Context, call *Call) ([]discord.Choice, error)
}

// Command binds a descriptor to its handler.
type Command struct {
	Data discord.ApplicationCommand
	// Restricted commands are only run for users the policy allows.
	Restricted bool
	Handler    Handler
}

// Registry maps command names to commands. It is immutable once built.
type Registry struct {
	byName map[string]Command
	order  []string
}

// NewRegistry indexes cmds by name and rejects duplicates.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{byName: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		name := c.Data.Name
		if name == "" {
			return nil, fmt.Errorf("command without a name")
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate command %q", name)
		}
		r.byName[name] = c
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns the command names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns the descriptors to register with the platform.
func (r *Registry) Descriptors() []discord.ApplicationCommand {
	out := make([]discord.ApplicationCommand, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name].Data
		if d.Type == 0 {
			d.Type = discord.CommandChatInput
		}
		out = append(out, d)
	}
	return out
}
