package commands

import (
	"context"
	"strings"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/interactions"
)

type infoHandler struct{ deps Deps }

func infoCommand(deps Deps) interactions.Command {
	return interactions.Command{
		Data: discord.ApplicationCommand{
			Type:        discord.CommandChatInput,
			Name:        "info",
			Description: "Get some info about me",
		},
		Handler: infoHandler{deps: deps},
	}
}

func (h infoHandler) Handle(ctx context.Context, call *interactions.Call) error {
	lines := []string{
		"🏠 **Homepage:** " + h.deps.homepageURL(),
		"🔗 **Invite URL:** " + h.deps.inviteURL(),
	}
	return call.Reply(ctx, embeds(discord.Embed{
		Title:       BotName + "'s Info",
		Description: strings.Join(lines, "\n"),
	}))
}
