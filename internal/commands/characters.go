package commands

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

var charactersArgs = argSchema("characters", `{
	"type": "object",
	"properties": {
		"character": {"type": "string", "format": "entity-id"}
	}
}`)

type charactersHandler struct{ deps Deps }

func charactersCommand(deps Deps) interactions.Command {
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "characters",
			Description: "View information about characters",
			Options: []discord.CommandOption{{
				Type:         discord.OptionString,
				Name:         "character",
				Description:  "Character to get information about",
				Autocomplete: true,
			}},
		},
		Handler: charactersHandler{deps: deps},
	}
}

func (h charactersHandler) Handle(ctx context.Context, call *interactions.Call) error {
	var args struct {
		Character string `json:"character"`
	}
	if err := call.Bind(charactersArgs, &args); err != nil {
		return err
	}
	if args.Character != "" {
		return h.view(ctx, call, args.Character)
	}
	return h.list(ctx, call)
}

func (h charactersHandler) list(ctx context.Context, call *interactions.Call) error {
	if err := call.Defer(ctx); err != nil {
		return err
	}
	chars, err := h.deps.Store.ListCharacters(ctx)
	if err != nil {
		return interactions.Internal("list characters", err)
	}
	slices.SortFunc(chars, hi3.CompareCharacters)
	lines := make([]string, 0, len(chars))
	for _, c := range chars {
		lines = append(lines, characterLine(c))
	}
	return sendPages(ctx, call, pagedEmbeds("Characters", lines, "*No characters*", descriptionLimit))
}

func (h charactersHandler) view(ctx context.Context, call *interactions.Call, id string) error {
	if err := call.Defer(ctx); err != nil {
		return err
	}
	var (
		char  *hi3.Character
		found bool
		valks []hi3.Valkyrie
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		char, found, err = h.deps.Store.GetCharacter(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		valks, err = h.deps.Store.ListValkyriesByCharacter(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return interactions.Internal("load character", err)
	}
	if !found {
		return call.Edit(ctx, result("View Character", "❌ Given character doesn't exist", discord.ColorRed))
	}
	return call.Edit(ctx, embeds(h.deps.characterEmbed(*char, valks)))
}

func (h charactersHandler) Autocomplete(ctx context.Context, call *interactions.Call) ([]discord.Choice, error) {
	return characterChoices(ctx, h.deps.Store, focusedValue(call))
}

// sendPages sends one follow-up per embed, each awaited before the next
// so they arrive in order.
func sendPages(ctx context.Context, call *interactions.Call, pages []discord.Embed) error {
	for _, e := range pages {
		if err := call.Followup(ctx, embeds(e)); err != nil {
			return interactions.Internal("send page", err)
		}
	}
	return nil
}

func focusedValue(call *interactions.Call) string {
	if call.Focused == nil {
		return ""
	}
	return call.Focused.StringValue()
}

func characterChoices(ctx context.Context, store *persistence.Store, keyword string) ([]discord.Choice, error) {
	chars, err := store.SearchCharacters(ctx, keyword, persistence.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]discord.Choice, 0, len(chars))
	for _, c := range chars {
		out = append(out, discord.Choice{Name: c.Name, Value: c.ID})
	}
	return out, nil
}

func valkyrieChoices(ctx context.Context, store *persistence.Store, keyword string) ([]discord.Choice, error) {
	valks, err := store.SearchValkyries(ctx, keyword, persistence.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]discord.Choice, 0, len(valks))
	for _, v := range valks {
		out = append(out, discord.Choice{Name: v.Name, Value: v.ID})
	}
	return out, nil
}
