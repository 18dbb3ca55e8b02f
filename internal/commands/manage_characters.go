package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

var (
	createCharacterArgs = argSchema("manage-characters create", `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1, "maxLength": 100},
			"emoji": {"type": "string", "format": "emoji"}
		},
		"required": ["name"]
	}`)
	updateCharacterArgs = argSchema("manage-characters update", `{
		"type": "object",
		"properties": {
			"character": {"type": "string", "format": "entity-id"},
			"emoji": {"type": "string", "format": "emoji"}
		},
		"required": ["character"]
	}`)
	deleteCharacterArgs = argSchema("manage-characters delete", `{
		"type": "object",
		"properties": {
			"character": {"type": "string", "format": "entity-id"},
			"force": {"type": "boolean"}
		},
		"required": ["character"]
	}`)
)

type manageCharactersHandler struct{ deps Deps }

func manageCharactersCommand(deps Deps) interactions.Command {
	characterOption := func(desc string) discord.CommandOption {
		return discord.CommandOption{
			Type: discord.OptionString, Name: "character", Description: desc,
			Autocomplete: true, Required: true,
		}
	}
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "manage-characters",
			Description: "Manage characters data",
			Options: []discord.CommandOption{
				{
					Type: discord.OptionSubCommand, Name: "create", Description: "Create a new character",
					Options: []discord.CommandOption{
						{Type: discord.OptionString, Name: "name", Description: "Name of the character", Required: true},
						{Type: discord.OptionString, Name: "emoji", Description: "Emoji for the character"},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "update", Description: "Update an existing character",
					Options: []discord.CommandOption{
						characterOption("Character to update"),
						{Type: discord.OptionString, Name: "emoji", Description: "New emoji for the character"},
					},
				},
				{
					Type: discord.OptionSubCommand, Name: "delete", Description: "Delete an existing character",
					Options: []discord.CommandOption{
						characterOption("Character to delete"),
						{Type: discord.OptionBoolean, Name: "force", Description: "Whether to force delete the character"},
					},
				},
			},
		},
		Restricted: true,
		Handler:    manageCharactersHandler{deps: deps},
	}
}

func (h manageCharactersHandler) Handle(ctx context.Context, call *interactions.Call) error {
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

func (h manageCharactersHandler) create(ctx context.Context, call *interactions.Call) error {
	const title = "Create Character"
	var args struct {
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	}
	if err := call.Bind(createCharacterArgs, &args); err != nil {
		return err
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	exists := result(title, fmt.Sprintf("❌ Character with name `%s` already exists", args.Name), discord.ColorRed)

	_, found, err := h.deps.Store.FindCharacterByName(ctx, args.Name)
	if err != nil {
		return interactions.Internal("find character", err)
	}
	if found {
		return call.Edit(ctx, exists)
	}
	if err := h.deps.cacheEmojis(ctx, args.Emoji); err != nil {
		return err
	}
	if _, err := h.deps.Store.CreateCharacter(ctx, args.Name, args.Emoji); err != nil {
		if errors.Is(err, persistence.ErrDuplicateName) {
			return call.Edit(ctx, exists)
		}
		return interactions.Internal("create character", err)
	}
	return call.Edit(ctx, result(title,
		fmt.Sprintf("✅ Character `%s` %s created successfully", args.Name, args.Emoji), discord.ColorGreen))
}

func (h manageCharactersHandler) update(ctx context.Context, call *interactions.Call) error {
	const title = "Update Character"
	var args struct {
		Character string `json:"character"`
		Emoji     string `json:"emoji"`
	}
	if err := call.Bind(updateCharacterArgs, &args); err != nil {
		return err
	}
	if args.Emoji == "" {
		return call.Reply(ctx, ephemeralText("❓ Nothing to update!"))
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	if err := h.deps.cacheEmojis(ctx, args.Emoji); err != nil {
		return err
	}
	c, found, err := h.deps.Store.UpdateCharacterEmoji(ctx, args.Character, args.Emoji)
	if err != nil {
		return interactions.Internal("update character", err)
	}
	if !found {
		return call.Edit(ctx, result(title, "❌ Given character doesn't exist", discord.ColorRed))
	}
	return call.Edit(ctx, result(title,
		fmt.Sprintf("✅ Character `%s` %s updated successfully", c.Name, c.Emoji), discord.ColorGreen))
}

func (h manageCharactersHandler) delete(ctx context.Context, call *interactions.Call) error {
	const title = "Delete Character"
	var args struct {
		Character string `json:"character"`
		Force     bool   `json:"force"`
	}
	if err := call.Bind(deleteCharacterArgs, &args); err != nil {
		return err
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	del := h.deps.Store.DeleteCharacter
	if args.Force {
		del = h.deps.Store.ForceDeleteCharacter
	}
	c, outcome, err := del(ctx, args.Character)
	if err != nil {
		return interactions.Internal("delete character", err)
	}
	switch outcome {
	case persistence.OutcomeDeleted:
		return call.Edit(ctx, result(title, fmt.Sprintf("✅ Character `%s` deleted successfully", c.Name), discord.ColorGreen))
	case persistence.OutcomeHasDependents:
		return call.Edit(ctx, result(title,
			"⚠️ Valkyries found for this character, aborting delete. Use `force: true` to delete the character along with its valkyries and user valkyries data",
			discord.ColorYellow))
	default:
		return call.Edit(ctx, result(title, "❌ The given Character doesn't exist", discord.ColorRed))
	}
}

func (h manageCharactersHandler) Autocomplete(ctx context.Context, call *interactions.Call) ([]discord.Choice, error) {
	return characterChoices(ctx, h.deps.Store, focusedValue(call))
}
