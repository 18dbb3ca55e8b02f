package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
)

var (
	updateMyValkyrieArgs = argSchema("my-valkyries update", `{
		"type": "object",
		"properties": {
			"valk": {"type": "string", "format": "entity-id"},
			"rank": {"enum": ["b", "a", "s", "s1", "s2", "s3", "ss", "ss1", "ss2", "ss3", "sss"]},
			"aug-rank": {"type": "integer", "minimum": 1, "maximum": 6},
			"remove": {"type": "boolean"}
		},
		"required": ["valk"]
	}`)
	bulkMyValkyriesArgs = argSchema("my-valkyries bulk", `{
		"type": "object",
		"properties": {
			"valks": {"type": "string", "minLength": 1}
		},
		"required": ["valks"]
	}`)
)

const updateMyValkyriesTitle = "Update My Valkyries Data"

type myValkyriesHandler struct{ deps Deps }

func myValkyriesCommand(deps Deps) interactions.Command {
	ranks := make([]discord.Choice, 0, len(hi3.Ranks))
	for _, r := range hi3.Ranks {
		ranks = append(ranks, discord.Choice{Name: r.Display(), Value: string(r)})
	}
	cores := make([]discord.Choice, 0, len(hi3.AugmentCoreRanks))
	for _, c := range hi3.AugmentCoreRanks {
		cores = append(cores, discord.Choice{Name: fmt.Sprint(c), Value: c})
	}
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "my-valkyries",
			Description: "View/manage your valkyries",
			Options: []discord.CommandOption{
				{Type: discord.OptionSubCommand, Name: "view", Description: "View all your valkyries"},
				{
					Type: discord.OptionSubCommand, Name: "update", Description: "Update your valkyries data",
					Options: []discord.CommandOption{
						{Type: discord.OptionString, Name: "valk", Description: "The concerned valkyrie for data update", Autocomplete: true, Required: true},
						{Type: discord.OptionString, Name: "rank", Description: "The rank for chosen valkyrie", Choices: ranks},
						{Type: discord.OptionInteger, Name: "aug-rank", Description: "The augment core rank for chosen valkyrie", Choices: cores},
						{Type: discord.OptionBoolean, Name: "remove", Description: "Whether to delete the data for chosen valkyrie"},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "add-many", Description: "Add data about multiple valkyries together",
					Options: []discord.CommandOption{
						{Type: discord.OptionString, Name: "valks", Description: "<valk> <rank/aug rank> (, ...)", Required: true},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "delete-many", Description: "Delete data about multiple valkyries together",
					Options: []discord.CommandOption{
						{Type: discord.OptionString, Name: "valks", Description: "<valk> (, ...)", Required: true},
					},
				},
			},
		},
		Handler: myValkyriesHandler{deps: deps},
	}
}

func (h myValkyriesHandler) Handle(ctx context.Context, call *interactions.Call) error {
	switch call.Subcommand {
	case "view":
		return h.view(ctx, call)
	case "update":
		return h.update(ctx, call)
	case "add-many":
		return h.addMany(ctx, call)
	case "delete-many":
		return h.deleteMany(ctx, call)
	default:
		return unknownSubcommand(ctx, call)
	}
}

func (h myValkyriesHandler) view(ctx context.Context, call *interactions.Call) error {
	if err := call.Defer(ctx); err != nil {
		return err
	}
	owned, err := h.deps.Store.ListUserValkyries(ctx, call.User.ID)
	if err != nil {
		return interactions.Internal("list user valkyries", err)
	}
	return sendPages(ctx, call, ownedEmbeds(call.User, owned))
}

func (h myValkyriesHandler) update(ctx context.Context, call *interactions.Call) error {
	var args struct {
		Valk    string `json:"valk"`
		Rank    string `json:"rank"`
		AugRank int    `json:"aug-rank"`
		Remove  bool   `json:"remove"`
	}
	if err := call.Bind(updateMyValkyrieArgs, &args); err != nil {
		return err
	}
	patch := hi3.Patch{Rank: hi3.Rank(args.Rank), CoreRank: args.AugRank}
	if patch.Empty() && !args.Remove {
		return call.Reply(ctx, ephemeralText("❓ Nothing to update!"))
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}

	v, found, err := h.deps.Store.GetValkyrie(ctx, args.Valk)
	if err != nil {
		return interactions.Internal("load valkyrie", err)
	}
	if !found {
		return call.Edit(ctx, result(updateMyValkyriesTitle, "❌ Given valkyrie doesn't exist", discord.ColorRed))
	}
	if args.Remove {
		removed, err := h.deps.Store.DeleteUserValkyrie(ctx, call.User.ID, v.ID)
		if err != nil {
			return interactions.Internal("remove user valkyrie", err)
		}
		if !removed {
			return call.Edit(ctx, result(updateMyValkyriesTitle,
				fmt.Sprintf("❌ Valkyrie data not found for **%s**", v.Name), discord.ColorRed))
		}
		return call.Edit(ctx, result(updateMyValkyriesTitle,
			fmt.Sprintf("✅ Valkyrie data for **%s** removed successfully", v.Name), discord.ColorGreen))
	}

	existing, _, err := h.deps.Store.GetUserValkyrie(ctx, call.User.ID, v.ID)
	if err != nil {
		return interactions.Internal("load user valkyrie", err)
	}
	uv, err := hi3.ApplyPatch(*v, call.User.ID, existing, patch)
	if err != nil {
		if msg, ok := ruleMessage(err); ok {
			return call.Edit(ctx, result(updateMyValkyriesTitle, msg, discord.ColorRed))
		}
		return interactions.Internal("apply patch", err)
	}
	if _, err := h.deps.Store.UpsertUserValkyrie(ctx, uv); err != nil {
		return interactions.Internal("save user valkyrie", err)
	}
	return call.Edit(ctx, result(updateMyValkyriesTitle,
		fmt.Sprintf("✅ Valkyrie data for **%s** updated successfully", v.Name), discord.ColorGreen))
}

func (h myValkyriesHandler) addMany(ctx context.Context, call *interactions.Call) error {
	var args struct {
		Valks string `json:"valks"`
	}
	if err := call.Bind(bulkMyValkyriesArgs, &args); err != nil {
		return err
	}
	entries, err := hi3.ParseBulkEntries(args.Valks)
	if err != nil {
		return userFacing(err)
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}

	var (
		lines []string
		order []string
		// later entries for the same valkyrie build on earlier ones
		applied = make(map[string]*hi3.UserValkyrie)
	)
	for _, e := range entries {
		v, found, err := h.deps.Store.FindValkyrieByNameOrAcronym(ctx, e.NameOrAcronym)
		if err != nil {
			return interactions.Internal("find valkyrie", err)
		}
		if !found {
			lines = append(lines, fmt.Sprintf("❌ Valkyrie **%s** doesn't exist", e.NameOrAcronym))
			continue
		}
		existing, seen := applied[v.ID]
		if !seen {
			existing, _, err = h.deps.Store.GetUserValkyrie(ctx, call.User.ID, v.ID)
			if err != nil {
				return interactions.Internal("load user valkyrie", err)
			}
		}
		uv, err := hi3.ApplyPatch(*v, call.User.ID, existing, e.Patch)
		if err != nil {
			msg, ok := ruleMessage(err)
			if !ok {
				return interactions.Internal("apply patch", err)
			}
			lines = append(lines, msg)
			continue
		}
		if !seen {
			order = append(order, v.ID)
		}
		applied[v.ID] = &uv

		line := fmt.Sprintf("✅ **%s** %s", v.Name, orDash(v.Emoji))
		if e.Rank != "" {
			line += " `" + e.Rank.Display() + "`"
		}
		lines = append(lines, line+coreSuffix(e.CoreRank))
	}
	toSave := make([]hi3.UserValkyrie, 0, len(order))
	for _, id := range order {
		toSave = append(toSave, *applied[id])
	}
	if err := h.deps.Store.SaveUserValkyries(ctx, toSave); err != nil {
		return interactions.Internal("save user valkyries", err)
	}
	return call.Edit(ctx, embeds(discord.Embed{
		Title:       "Bulk Add My Valkyries Data",
		Description: strings.Join(lines, "\n"),
	}))
}

func (h myValkyriesHandler) deleteMany(ctx context.Context, call *interactions.Call) error {
	var args struct {
		Valks string `json:"valks"`
	}
	if err := call.Bind(bulkMyValkyriesArgs, &args); err != nil {
		return err
	}
	names, err := hi3.ParseBulkNames(args.Valks)
	if err != nil {
		return userFacing(err)
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}

	var (
		lines    []string
		toRemove []string
	)
	for _, name := range names {
		v, found, err := h.deps.Store.FindValkyrieByNameOrAcronym(ctx, name)
		if err != nil {
			return interactions.Internal("find valkyrie", err)
		}
		if !found {
			lines = append(lines, fmt.Sprintf("❌ Valkyrie **%s** doesn't exist", name))
			continue
		}
		uv, found, err := h.deps.Store.GetUserValkyrie(ctx, call.User.ID, v.ID)
		if err != nil {
			return interactions.Internal("load user valkyrie", err)
		}
		if !found {
			lines = append(lines, fmt.Sprintf("❌ Valkyrie data not found for **%s**", v.Name))
			continue
		}
		toRemove = append(toRemove, uv.ID)
		lines = append(lines, fmt.Sprintf("✅ Valkyrie data for **%s** removed successfully", v.Name))
	}
	if _, err := h.deps.Store.DeleteUserValkyries(ctx, toRemove); err != nil {
		return interactions.Internal("delete user valkyries", err)
	}
	return call.Edit(ctx, embeds(discord.Embed{
		Title:       "Bulk Delete My Valkyries Data",
		Description: strings.Join(lines, "\n"),
	}))
}

func (h myValkyriesHandler) Autocomplete(ctx context.Context, call *interactions.Call) ([]discord.Choice, error) {
	return valkyrieChoices(ctx, h.deps.Store, focusedValue(call))
}
