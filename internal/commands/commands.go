// Package commands implements the bot's slash commands on top of the
// interactions core.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

// BotName is how the bot refers to itself in messages.
const BotName = "Haxxor Bunny"

// EmojiCacher stores an emoji image so embeds can serve it from the bot's
// own media endpoint.
type EmojiCacher interface {
	CacheEmoji(ctx context.Context, emoji string) error
}

// Deps is everything the handlers need. It is built once at startup.
type Deps struct {
	Store *persistence.Store
	// CDN may be nil, in which case emojis are not cached.
	CDN EmojiCacher
	// Users may be nil; profiles then fall back to bare ids.
	Users UserLookup
	// PublicBaseURL is where the bot's HTTP surface is reachable. When set,
	// embed thumbnails point at the cached copy under /cdn.
	PublicBaseURL string
	Logger        *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) homepageURL() string {
	if d.PublicBaseURL == "" {
		return "http://localhost:3000"
	}
	return d.PublicBaseURL
}

func (d Deps) inviteURL() string {
	return d.homepageURL() + "/invite"
}

// emojiImage is the thumbnail URL for an emoji, or "" when it has none.
func (d Deps) emojiImage(emoji string) string {
	if emoji == "" {
		return ""
	}
	if d.PublicBaseURL != "" && d.CDN != nil {
		return d.PublicBaseURL + "/cdn/" + url.PathEscape(emoji)
	}
	u, _ := hi3.EmojiURL(emoji)
	return u
}

// cacheEmojis stores each non-empty emoji in the CDN.
func (d Deps) cacheEmojis(ctx context.Context, emojis ...string) error {
	if d.CDN == nil {
		return nil
	}
	for _, e := range emojis {
		if e == "" {
			continue
		}
		if err := d.CDN.CacheEmoji(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// All returns every command in registration order.
func All(deps Deps) []interactions.Command {
	return []interactions.Command{
		infoCommand(deps),
		charactersCommand(deps),
		valkyriesCommand(deps),
		manageCharactersCommand(deps),
		manageValkyriesCommand(deps),
		myValkyriesCommand(deps),
		userValkyriesCommand(deps),
	}
}

// NewRegistry validates every descriptor and indexes the commands.
func NewRegistry(deps Deps) (*interactions.Registry, error) {
	cmds := All(deps)
	descriptors := make([]discord.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		descriptors = append(descriptors, c.Data)
	}
	if err := Validate(descriptors); err != nil {
		return nil, err
	}
	return interactions.NewRegistry(cmds...)
}

func ruleMessage(err error) (string, bool) {
	var re *hi3.RuleError
	if errors.As(err, &re) {
		return re.Message, true
	}
	return "", false
}

// userFacing turns a game rule violation into a displayable error.
func userFacing(err error) error {
	if msg, ok := ruleMessage(err); ok {
		return interactions.UserError("%s", msg)
	}
	return err
}

func unknownSubcommand(ctx context.Context, call *interactions.Call) error {
	call.Logger.Warn("unknown subcommand")
	return call.Reply(ctx, ephemeralText(interactions.UnknownTypeMessage))
}
