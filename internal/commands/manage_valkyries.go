package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

var (
	createValkyrieArgs = argSchema("manage-valkyries create", `{
		"type": "object",
		"properties": {
			"character": {"type": "string", "format": "entity-id"},
			"name": {"type": "string", "minLength": 1, "maxLength": 100},
			"nature": {"enum": ["mech", "bio", "psy", "qua", "imag"]},
			"base-rank": {"enum": ["b", "a", "s"]},
			"acronyms": {"type": "string", "format": "acronyms"},
			"emoji": {"type": "string", "format": "emoji"},
			"aug-emoji": {"type": "string", "format": "emoji"}
		},
		"required": ["character", "name", "nature", "base-rank", "acronyms"]
	}`)
	updateValkyrieArgs = argSchema("manage-valkyries update", `{
		"type": "object",
		"properties": {
			"valk": {"type": "string", "format": "entity-id"},
			"delta-acronyms": {"type": "string", "format": "delta-acronyms"},
			"emoji": {"type": "string", "format": "emoji"},
			"aug-emoji": {"type": "string", "format": "emoji"}
		},
		"required": ["valk"]
	}`)
	deleteValkyrieArgs = argSchema("manage-valkyries delete", `{
		"type": "object",
		"properties": {
			"valk": {"type": "string", "format": "entity-id"},
			"force": {"type": "boolean"}
		},
		"required": ["valk"]
	}`)
)

type manageValkyriesHandler struct{ deps Deps }

func manageValkyriesCommand(deps Deps) interactions.Command {
	natures := make([]discord.Choice, 0, len(hi3.Natures))
	for _, n := range hi3.Natures {
		natures = append(natures, discord.Choice{Name: n.Display, Value: string(n.Value)})
	}
	baseRanks := make([]discord.Choice, 0, len(hi3.BaseRanks))
	for _, r := range hi3.BaseRanks {
		baseRanks = append(baseRanks, discord.Choice{Name: r.Display(), Value: string(r)})
	}
	valkOption := func(desc string) discord.CommandOption {
		return discord.CommandOption{
			Type: discord.OptionString, Name: "valk", Description: desc,
			Autocomplete: true, Required: true,
		}
	}
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "manage-valkyries",
			Description: "Manage Valkyries Data",
			Options: []discord.CommandOption{
				{
					Type: discord.OptionSubCommand, Name: "create", Description: "Create a new valkyrie",
					Options: []discord.CommandOption{
						{Type: discord.OptionString, Name: "character", Description: "Character of the valkyrie", Autocomplete: true, Required: true},
						{Type: discord.OptionString, Name: "name", Description: "Name of the valkyrie", Required: true},
						{Type: discord.OptionString, Name: "nature", Description: "Nature of the valkyrie", Choices: natures, Required: true},
						{Type: discord.OptionString, Name: "base-rank", Description: "Base rank of the valkyrie", Choices: baseRanks, Required: true},
						{Type: discord.OptionString, Name: "acronyms", Description: "Acronyms of the valkyrie", Required: true},
						{Type: discord.OptionString, Name: "emoji", Description: "Emoji for the valkyrie"},
						{Type: discord.OptionString, Name: "aug-emoji", Description: "Augment emoji for the valkyrie"},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "update", Description: "Update an existing valkyrie",
					Options: []discord.CommandOption{
						valkOption("Valkyrie to update"),
						{Type: discord.OptionString, Name: "delta-acronyms", Description: "Acronyms of the valkyrie"},
						{Type: discord.OptionString, Name: "emoji", Description: "New emoji for the valkyrie"},
						{Type: discord.OptionString, Name: "aug-emoji", Description: "New augment emoji for the valkyrie"},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "delete", Description: "Delete an existing valkyrie",
					Options: []discord.CommandOption{
						valkOption("Valkyrie to delete"),
						{Type: discord.OptionBoolean, Name: "force", Description: "Whether to force delete the valkyrie"},
					},
				},
			},
		},
		Restricted: true,
		Handler:    manageValkyriesHandler{deps: deps},
	}
}

func (h manageValkyriesHandler) Handle(ctx context.Context, call *interactions.Call) error {
	switch call.Subcommand {
	case "create":
		return h.create(ctx, call)
	case "update":
		return h.update(ctx, call)
	case "delete":
		return h.delete(ctx, call)
	default:
		return unknownSubcommand(ctx, call)
	}
}

// acronymPhrase renders "as `a`" or "as atleast one of `a`, `b`".
func acronymPhrase(acronyms []string) string {
	phrase := "as"
	if len(acronyms) > 1 {
		phrase += " atleast one of"
	}
	return phrase + " " + codeList(acronyms)
}

func (h manageValkyriesHandler) create(ctx context.Context, call *interactions.Call) error {
	const title = "Create Valkyrie"
	var args struct {
		Character string `json:"character"`
		Name      string `json:"name"`
		Nature    string `json:"nature"`
		BaseRank  string `json:"base-rank"`
		Acronyms  string `json:"acronyms"`
		Emoji     string `json:"emoji"`
		AugEmoji  string `json:"aug-emoji"`
	}
	if err := call.Bind(createValkyrieArgs, &args); err != nil {
		return err
	}
	acronyms, err := hi3.ParseAcronyms(args.Acronyms)
	if err != nil {
		return userFacing(err)
	}
	baseRank := hi3.Rank(args.BaseRank)
	if !hi3.CanHaveAugment(baseRank) && args.AugEmoji != "" {
		return call.Reply(ctx, ephemeralText(hi3.AugmentNotAllowedMessage()))
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}

	char, found, err := h.deps.Store.GetCharacter(ctx, args.Character)
	if err != nil {
		return interactions.Internal("load character", err)
	}
	if !found {
		return call.Edit(ctx, result(title, "❌ Given character doesn't exist", discord.ColorRed))
	}
	conflict := result(title,
		fmt.Sprintf("❌ Valkyrie with name **%s** or acronym %s already exists", args.Name, acronymPhrase(acronyms)),
		discord.ColorRed)
	taken, err := h.deps.Store.ValkyrieConflicts(ctx, args.Name, acronyms, "")
	if err != nil {
		return interactions.Internal("check valkyrie conflicts", err)
	}
	if taken {
		return call.Edit(ctx, conflict)
	}
	if err := h.deps.cacheEmojis(ctx, args.Emoji, args.AugEmoji); err != nil {
		return err
	}

	v, err := h.deps.Store.CreateValkyrie(ctx, hi3.Valkyrie{
		CharacterID: char.ID,
		Name:        args.Name,
		Nature:      hi3.Nature(args.Nature),
		BaseRank:    baseRank,
		Acronyms:    acronyms,
		Emoji:       args.Emoji,
		AugEmoji:    args.AugEmoji,
	})
	if errors.Is(err, persistence.ErrDuplicateName) {
		return call.Edit(ctx, conflict)
	}
	if err != nil {
		return interactions.Internal("create valkyrie", err)
	}
	return call.Edit(ctx, embeds(h.deps.valkyrieEmbed(*v, title,
		fmt.Sprintf("✅ Valkyrie **%s** created successfully", v.Name), discord.ColorGreen)))
}

func (h manageValkyriesHandler) update(ctx context.Context, call *interactions.Call) error {
	const title = "Update Valkyrie"
	var args struct {
		Valk          string `json:"valk"`
		DeltaAcronyms string `json:"delta-acronyms"`
		Emoji         string `json:"emoji"`
		AugEmoji      string `json:"aug-emoji"`
	}
	if err := call.Bind(updateValkyrieArgs, &args); err != nil {
		return err
	}
	if args.DeltaAcronyms == "" && args.Emoji == "" && args.AugEmoji == "" {
		return call.Reply(ctx, ephemeralText("❓ Nothing to update!"))
	}
	var delta hi3.DeltaAcronyms
	if args.DeltaAcronyms != "" {
		d, err := hi3.ParseDeltaAcronyms(args.DeltaAcronyms)
		if err != nil {
			return userFacing(err)
		}
		delta = d
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}

	v, found, err := h.deps.Store.GetValkyrie(ctx, args.Valk)
	if err != nil {
		return interactions.Internal("load valkyrie", err)
	}
	if !found {
		return call.Edit(ctx, result(title, "❌ Given valkyrie doesn't exist", discord.ColorRed))
	}
	if !v.CanHaveAugment() && args.AugEmoji != "" {
		return call.Edit(ctx, result(title, hi3.AugmentNotAllowedMessage(), discord.ColorRed))
	}

	updated := *v
	var added []string
	updated.Acronyms, added = delta.Apply(v.Acronyms)
	if len(added) > 0 {
		taken, err := h.deps.Store.ValkyrieConflicts(ctx, "", added, v.ID)
		if err != nil {
			return interactions.Internal("check valkyrie conflicts", err)
		}
		if taken {
			return call.Edit(ctx, result(title,
				fmt.Sprintf("❌ Valkyrie with acronym %s already exists", acronymPhrase(added)), discord.ColorRed))
		}
	}
	if args.Emoji != "" {
		updated.Emoji = args.Emoji
	}
	if args.AugEmoji != "" {
		updated.AugEmoji = args.AugEmoji
	}
	if err := h.deps.cacheEmojis(ctx, args.Emoji, args.AugEmoji); err != nil {
		return err
	}

	saved, found, err := h.deps.Store.UpdateValkyrie(ctx, updated)
	if err != nil {
		return interactions.Internal("update valkyrie", err)
	}
	if !found {
		return call.Edit(ctx, result(title, "❌ Given valkyrie doesn't exist", discord.ColorRed))
	}
	return call.Edit(ctx, embeds(h.deps.valkyrieEmbed(*saved, title,
		fmt.Sprintf("✅ Valkyrie **%s** updated successfully", saved.Name), discord.ColorGreen)))
}

func (h manageValkyriesHandler) delete(ctx context.Context, call *interactions.Call) error {
	const title = "Delete Valkyrie"
	var args struct {
		Valk  string `json:"valk"`
		Force bool   `json:"force"`
	}
	if err := call.Bind(deleteValkyrieArgs, &args); err != nil {
		return err
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	del := h.deps.Store.DeleteValkyrie
	if args.Force {
		del = h.deps.Store.ForceDeleteValkyrie
	}
	v, outcome, err := del(ctx, args.Valk)
	if err != nil {
		return interactions.Internal("delete valkyrie", err)
	}
	switch outcome {
	case persistence.OutcomeDeleted:
		return call.Edit(ctx, result(title, fmt.Sprintf("✅ Valkyrie **%s** deleted successfully", v.Name), discord.ColorGreen))
	case persistence.OutcomeHasDependents:
		return call.Edit(ctx, result(title,
			"⚠️ User valkyries data found for this valkyrie, aborting delete. Use `force: true` to delete the valkyrie along with the user valkyries data",
			discord.ColorYellow))
	default:
		return call.Edit(ctx, result(title, "❌ The given Valkyrie doesn't exist", discord.ColorRed))
	}
}

func (h manageValkyriesHandler) Autocomplete(ctx context.Context, call *interactions.Call) ([]discord.Choice, error) {
	keyword := focusedValue(call)
	if call.Focused != nil && strings.EqualFold(call.Focused.Name, "valk") {
		return valkyrieChoices(ctx, h.deps.Store, keyword)
	}
	return characterChoices(ctx, h.deps.Store, keyword)
}
