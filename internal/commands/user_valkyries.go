package commands

import (
	"context"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/interactions"
)

var userValkyriesArgs = argSchema("user-valkyries", `{
	"type": "object",
	"properties": {
		"user": {"type": "string", "pattern": "^[0-9]{15,21}$"},
		"user-id": {"type": "string", "pattern": "^[0-9]{15,21}$"}
	}
}`)

// UserLookup resolves a user id to a profile. *discord.Client
// implements it.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*discord.User, error)
}

type userValkyriesHandler struct{ deps Deps }

func userValkyriesCommand(deps Deps) interactions.Command {
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "user-valkyries",
			Description: "View valkyries of a user",
			Options: []discord.CommandOption{
				{Type: discord.OptionUser, Name: "user", Description: "The user whose valkyrie to view"},
				{Type: discord.OptionString, Name: "user-id", Description: "Discord user id of the user"},
			},
		},
		Handler: userValkyriesHandler{deps: deps},
	}
}

func (h userValkyriesHandler) Handle(ctx context.Context, call *interactions.Call) error {
	var args struct {
		User   string `json:"user"`
		UserID string `json:"user-id"`
	}
	if err := call.Bind(userValkyriesArgs, &args); err != nil {
		return err
	}
	if err := call.Defer(ctx); err != nil {
		return err
	}
	target := h.resolve(ctx, call, args.User, args.UserID)
	owned, err := h.deps.Store.ListUserValkyries(ctx, target.ID)
	if err != nil {
		return interactions.Internal("list user valkyries", err)
	}
	return sendPages(ctx, call, ownedEmbeds(target, owned))
}

// resolve picks the user option, then the raw id, then the caller. A
// failed profile lookup falls back to the bare id.
func (h userValkyriesHandler) resolve(ctx context.Context, call *interactions.Call, userOpt, rawID string) discord.User {
	if userOpt != "" {
		if u, ok := call.ResolvedUser(userOpt); ok {
			return u
		}
		rawID = userOpt
	}
	if rawID == "" {
		return call.User
	}
	if h.deps.Users != nil {
		u, err := h.deps.Users.GetUser(ctx, rawID)
		if err == nil {
			return *u
		}
		call.Logger.Warn("user lookup failed", "target_user_id", rawID, "error", err)
	}
	return discord.User{ID: rawID}
}
