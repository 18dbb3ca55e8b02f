package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/hi3"
)

// descriptionLimit is the platform's cap on an embed description.
const descriptionLimit = 4096

func ephemeralText(content string) discord.MessageData {
	return discord.MessageData{
		Content:         content,
		Flags:           discord.FlagEphemeral,
		AllowedMentions: discord.NoMentions(),
	}
}

func embeds(e ...discord.Embed) discord.MessageData {
	return discord.MessageData{Embeds: e, AllowedMentions: discord.NoMentions()}
}

func result(title, description string, color int) discord.MessageData {
	return embeds(discord.Embed{Title: title, Description: description, Color: color})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return "`" + strings.Join(items, "`, `") + "`"
}

// pagedEmbeds splits lines over as many embeds as needed to stay under
// limit. Every page carries the title; pages are numbered in the footer.
func pagedEmbeds(title string, lines []string, emptyText string, limit int) []discord.Embed {
	if len(lines) == 0 {
		return []discord.Embed{{Title: title, Description: emptyText}}
	}
	var pages []string
	var b strings.Builder
	for _, line := range lines {
		if b.Len() > 0 && b.Len()+1+len(line) > limit {
			pages = append(pages, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	pages = append(pages, b.String())

	out := make([]discord.Embed, 0, len(pages))
	for i, p := range pages {
		e := discord.Embed{Title: title, Description: p}
		if len(pages) > 1 {
			e.Footer = &discord.EmbedFooter{Text: fmt.Sprintf("Page %d/%d", i+1, len(pages))}
		}
		out = append(out, e)
	}
	return out
}

func characterLine(c hi3.Character) string {
	return orDash(c.Emoji) + " **" + c.Name + "**"
}

func valkyrieLine(v hi3.Valkyrie) string {
	line := fmt.Sprintf("%s %s **%s**", v.Nature.Info().Emoji, orDash(v.Emoji), v.Name)
	if len(v.Acronyms) > 0 {
		line += " " + codeList(v.Acronyms)
	}
	return line
}

func coreSuffix(core int) string {
	if core == 0 {
		return ""
	}
	return fmt.Sprintf(" %d⭐", core)
}

func ownedLine(o hi3.OwnedValkyrie) string {
	emoji := o.Valkyrie.Emoji
	if o.CoreRank > 0 && o.Valkyrie.AugEmoji != "" {
		emoji = o.Valkyrie.AugEmoji
	}
	return fmt.Sprintf("%s **%s** `%s`%s", orDash(emoji), o.Valkyrie.Name, o.Rank.Display(), coreSuffix(o.CoreRank))
}

func (d Deps) characterEmbed(c hi3.Character, valks []hi3.Valkyrie) discord.Embed {
	slices.SortFunc(valks, hi3.CompareValkyries)
	lines := make([]string, 0, len(valks))
	for _, v := range valks {
		lines = append(lines, valkyrieLine(v))
	}
	value := strings.Join(lines, "\n")
	if value == "" {
		value = "*No Valkyries for `" + c.Name + "`*"
	}
	e := discord.Embed{
		Title: "View Character",
		Fields: []discord.EmbedField{
			{Name: "Name", Value: c.Name},
			{Name: "Valkyries", Value: value},
		},
	}
	if u := d.emojiImage(c.Emoji); u != "" {
		e.Thumbnail = &discord.EmbedImage{URL: u}
	}
	return e
}

// valkyrieEmbed shows every catalog field of a valkyrie.
func (d Deps) valkyrieEmbed(v hi3.Valkyrie, title, description string, color int) discord.Embed {
	nature := v.Nature.Info()
	fields := []discord.EmbedField{
		{Name: "Name", Value: v.Name, Inline: true},
		{Name: "Character", Value: orDash(v.CharacterName), Inline: true},
		{Name: "Nature", Value: strings.TrimSpace(nature.Emoji + " " + nature.Display), Inline: true},
		{Name: "Base Rank", Value: "`" + v.BaseRank.Display() + "`", Inline: true},
		{Name: "Acronyms", Value: codeList(v.Acronyms), Inline: true},
		{Name: "Emoji", Value: orDash(v.Emoji), Inline: true},
	}
	if v.CanHaveAugment() {
		fields = append(fields, discord.EmbedField{Name: "Augment Emoji", Value: orDash(v.AugEmoji), Inline: true})
	}
	e := discord.Embed{Title: title, Description: description, Color: color, Fields: fields}
	if u := d.emojiImage(v.Emoji); u != "" {
		e.Thumbnail = &discord.EmbedImage{URL: u}
	}
	return e
}

// ownedEmbeds lists a user's valkyries, paginated.
func ownedEmbeds(user discord.User, owned []hi3.OwnedValkyrie) []discord.Embed {
	slices.SortFunc(owned, hi3.CompareOwned)
	lines := make([]string, 0, len(owned))
	for _, o := range owned {
		lines = append(lines, ownedLine(o))
	}
	name := user.DisplayName()
	if name == "" {
		name = user.ID
	}
	pages := pagedEmbeds(name+"'s Valkyries", lines, "*No valkyries data*", descriptionLimit)
	for i := range pages {
		pages[i].Author = &discord.EmbedAuthor{Name: name, IconURL: user.AvatarURL()}
	}
	return pages
}
