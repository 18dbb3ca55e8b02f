package interactions

import (
	"strings"

	"github.com/basket/haxxor-bunny/internal/discord"
)

// Kind classifies an interaction for the dispatcher.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindCommand
	KindAutocomplete
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindCommand:
		return "command"
	case KindAutocomplete:
		return "autocomplete"
	default:
		return "unknown"
	}
}

// Classification is what the dispatcher needs to route an interaction.
type Classification struct {
	Kind        Kind
	CommandName string
	CommandID   string
	// Subcommand is the invoked subcommand path joined by spaces.
	Subcommand string
	Options    []discord.Option
	Focused    *discord.Option
}

// Decode classifies a verified interaction. Only chat input commands are
// routed; everything else is KindUnknown.
func Decode(in *discord.Interaction) Classification {
	if in == nil {
		return Classification{Kind: KindUnknown}
	}
	switch in.Type {
	case discord.InteractionPing:
		return Classification{Kind: KindPing}
	case discord.InteractionApplicationCommand, discord.InteractionApplicationCommandAutocomplete:
	default:
		return Classification{Kind: KindUnknown}
	}

	d := in.Data
	if d == nil || d.Name == "" || (d.Type != 0 && d.Type != discord.CommandChatInput) {
		return Classification{Kind: KindUnknown}
	}
	path, leaves := discord.Flatten(d.Options)
	c := Classification{
		Kind:        KindCommand,
		CommandName: d.Name,
		CommandID:   d.ID,
		Subcommand:  strings.Join(path, " "),
		Options:     leaves,
	}
	if in.Type == discord.InteractionApplicationCommandAutocomplete {
		c.Kind = KindAutocomplete
		if focused, ok := discord.Focused(d.Options); ok {
			c.Focused = &focused
		}
	}
	return c
}
