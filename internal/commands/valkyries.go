package commands

import (
	"context"
	"slices"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
)

var valkyriesArgs = argSchema("valkyries", `{
	"type": "object",
	"properties": {
		"valk": {"type": "string", "format": "entity-id"}
	}
}`)

type valkyriesHandler struct{ deps Deps }

func valkyriesCommand(deps Deps) interactions.Command {
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "valkyries",
			Description: "View information about valkyries",
			Options: []discord.CommandOption{{
				Type:         discord.OptionString,
				Name:         "valk",
				Description:  "Valkyrie to get information about",
				Autocomplete: true,
			}},
		},
		Handler: valkyriesHandler{deps: deps},
	}
}

func (h valkyriesHandler) Handle(ctx context.Context, call *interactions.Call) error {
	var args struct {
		Valk string `json:"valk"`
	}
	if err := call.Bind(valkyriesArgs, &args); err != nil {
		return err
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	if args.Valk != "" {
		return h.view(ctx, call, args.Valk)
	}

	valks, err := h.deps.Store.ListValkyries(ctx)
	if err != nil {
		return interactions.Internal("list valkyries", err)
	}
	slices.SortFunc(valks, hi3.CompareValkyries)
	lines := make([]string, 0, len(valks))
	for _, v := range valks {
		lines = append(lines, valkyrieLine(v))
	}
	return sendPages(ctx, call, pagedEmbeds("Valkyries", lines, "*No valkyries*", descriptionLimit))
}

func (h valkyriesHandler) view(ctx context.Context, call *interactions.Call, id string) error {
	v, found, err := h.deps.Store.GetValkyrie(ctx, id)
	if err != nil {
		return interactions.Internal("load valkyrie", err)
	}
	if !found {
		return call.Edit(ctx, result("View Valkyrie", "❌ Given valkyrie doesn't exist", discord.ColorRed))
	}
	return call.Edit(ctx, embeds(h.deps.valkyrieEmbed(*v, "View Valkyrie", "", 0)))
}

func (h valkyriesHandler) Autocomplete(ctx context.Context, call *interactions.Call) ([]discord.Choice, error) {
	return valkyrieChoices(ctx, h.deps.Store, focusedValue(call))
}
