// Package discord holds the subset of the Discord platform model the bot
// speaks: inbound interactions, interaction responses, messages and embeds,
// and application command descriptors. It also provides a small REST
// client for the side channel (original response, follow-ups, deploy).
package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// InteractionType is the kind of inbound interaction.
type InteractionType int

const (
	InteractionPing                           InteractionType = 1
	InteractionApplicationCommand             InteractionType = 2
	InteractionMessageComponent               InteractionType = 3
	InteractionApplicationCommandAutocomplete InteractionType = 4
	InteractionModalSubmit                    InteractionType = 5
)

func (t InteractionType) String() string {
	switch t {
	case InteractionPing:
		return "ping"
	case InteractionApplicationCommand:
		return "application_command"
	case InteractionMessageComponent:
		return "message_component"
	case InteractionApplicationCommandAutocomplete:
		return "autocomplete"
	case InteractionModalSubmit:
		return "modal_submit"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// CommandType is the kind of application command.
type CommandType int

const (
	CommandChatInput CommandType = 1
	CommandUser      CommandType = 2
	CommandMessage   CommandType = 3
)

// OptionType tags an option node in a command invocation or descriptor.
type OptionType int

const (
	OptionSubCommand      OptionType = 1
	OptionSubCommandGroup OptionType = 2
	OptionString          OptionType = 3
	OptionInteger         OptionType = 4
	OptionBoolean         OptionType = 5
	OptionUser            OptionType = 6
	OptionChannel         OptionType = 7
	OptionRole            OptionType = 8
	OptionMentionable     OptionType = 9
	OptionNumber          OptionType = 10
	OptionAttachment      OptionType = 11
)

// IsLeaf reports whether options of this type carry a value rather than
// nested options.
func (t OptionType) IsLeaf() bool {
	switch t {
	case OptionSubCommand, OptionSubCommandGroup:
		return false
	case OptionString, OptionInteger, OptionBoolean, OptionUser, OptionChannel,
		OptionRole, OptionMentionable, OptionNumber, OptionAttachment:
		return true
	default:
		return false
	}
}

// User is a Discord user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Tag returns the display tag, username#discriminator for legacy accounts.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// DisplayName prefers the global name over the username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL returns the CDN URL of the user's avatar or the default one.
func (u User) AvatarURL() string {
	if u.Avatar == "" {
		id, _ := strconv.ParseUint(u.ID, 10, 64)
		return fmt.Sprintf("%s/embed/avatars/%d.png", CDNBaseURL, (id>>22)%6)
	}
	ext := "png"
	if len(u.Avatar) > 2 && u.Avatar[:2] == "a_" {
		ext = "gif"
	}
	return fmt.Sprintf("%s/avatars/%s/%s.%s", CDNBaseURL, u.ID, u.Avatar, ext)
}

// Member is a guild member; the user is embedded for guild interactions.
type Member struct {
	User  *User    `json:"user,omitempty"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Interaction is an inbound webhook payload.
type Interaction struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	Type          InteractionType  `json:"type"`
	Data          *InteractionData `json:"data,omitempty"`
	GuildID       string           `json:"guild_id,omitempty"`
	ChannelID     string           `json:"channel_id,omitempty"`
	Member        *Member          `json:"member,omitempty"`
	User          *User            `json:"user,omitempty"`
	Token         string           `json:"token"`
	Version       int              `json:"version"`
	Locale        string           `json:"locale,omitempty"`
}

// InvokingUser returns the user who triggered the interaction. Guild
// interactions carry the user under member, DMs carry it directly.
func (i *Interaction) InvokingUser() (User, bool) {
	if i.Member != nil && i.Member.User != nil {
		return *i.Member.User, true
	}
	if i.User != nil {
		return *i.User, true
	}
	return User{}, false
}

// InteractionData is the command invocation carried by command and
// autocomplete interactions.
type InteractionData struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     CommandType `json:"type"`
	GuildID  string      `json:"guild_id,omitempty"`
	Options  []Option    `json:"options,omitempty"`
	Resolved *Resolved   `json:"resolved,omitempty"`
}

// Resolved holds the objects referenced by user/role/channel options.
type Resolved struct {
	Users   map[string]User   `json:"users,omitempty"`
	Members map[string]Member `json:"members,omitempty"`
}

// Option is one node of the invocation option tree. Subcommands and
// groups carry Options; every other type carries Value.
type Option struct {
	Name    string          `json:"name"`
	Type    OptionType      `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Options []Option        `json:"options,omitempty"`
	Focused bool            `json:"focused,omitempty"`
}

// StringValue returns the value of a string-like option. Integer and
// number values are rendered in decimal.
func (o Option) StringValue() string {
	if len(o.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(o.Value, &s); err == nil {
		return s
	}
	return string(o.Value)
}

// Flatten descends through subcommand groups and subcommands and returns
// the invoked subcommand path together with the leaf options. When the
// invocation has no subcommand the path is empty and the top-level
// options are returned unchanged.
func Flatten(opts []Option) (path []string, leaves []Option) {
	for {
		if len(opts) != 1 || opts[0].Type.IsLeaf() {
			return path, opts
		}
		switch opts[0].Type {
		case OptionSubCommand, OptionSubCommandGroup:
			path = append(path, opts[0].Name)
			opts = opts[0].Options
		default:
			return path, opts
		}
	}
}

// Focused returns the leaf option the user is currently typing into.
func Focused(opts []Option) (Option, bool) {
	_, leaves := Flatten(opts)
	for _, o := range leaves {
		if o.Focused {
			return o, true
		}
	}
	return Option{}, false
}

// ResponseType is the kind of reply sent back on the webhook response.
type ResponseType int

const (
	ResponsePong                             ResponseType = 1
	ResponseChannelMessageWithSource         ResponseType = 4
	ResponseDeferredChannelMessageWithSource ResponseType = 5
	ResponseDeferredUpdateMessage            ResponseType = 6
	ResponseUpdateMessage                    ResponseType = 7
	ResponseAutocompleteResult               ResponseType = 8
)

// MessageFlags is the bit set of message flags.
type MessageFlags int

// FlagEphemeral makes the message visible to the invoking user only.
const FlagEphemeral MessageFlags = 1 << 6

// AllowedMentions restricts which mentions in content ping.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Users []string `json:"users,omitempty"`
}

// NoMentions suppresses every ping.
func NoMentions() *AllowedMentions {
	return &AllowedMentions{Parse: []string{}}
}

// MessageData is the body of a message reply, edit, or follow-up.
type MessageData struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	Flags           MessageFlags     `json:"flags,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// Ephemeral reports whether the ephemeral flag is set.
func (m MessageData) Ephemeral() bool {
	return m.Flags&FlagEphemeral != 0
}

// ResponseData is the data of an interaction response.
type ResponseData struct {
	MessageData
	Choices []Choice `json:"choices,omitempty"`
}

// InteractionResponse is the payload written on the webhook response.
type InteractionResponse struct {
	Type ResponseType  `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// MarshalJSON always emits a choices array for autocomplete results;
// an empty list is a valid answer there.
func (r InteractionResponse) MarshalJSON() ([]byte, error) {
	if r.Type == ResponseAutocompleteResult {
		choices := []Choice{}
		if r.Data != nil && r.Data.Choices != nil {
			choices = r.Data.Choices
		}
		return json.Marshal(struct {
			Type ResponseType `json:"type"`
			Data struct {
				Choices []Choice `json:"choices"`
			} `json:"data"`
		}{Type: r.Type, Data: struct {
			Choices []Choice `json:"choices"`
		}{Choices: choices}})
	}
	type plain InteractionResponse
	return json.Marshal(plain(r))
}

// Pong acknowledges a ping.
func Pong() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

// Reply answers with a visible message.
func Reply(msg MessageData) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessageWithSource,
		Data: &ResponseData{MessageData: msg},
	}
}

// Deferred acknowledges now and promises an edit of the original response.
func Deferred(ephemeral bool) InteractionResponse {
	resp := InteractionResponse{Type: ResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &ResponseData{MessageData: MessageData{Flags: FlagEphemeral}}
	}
	return resp
}

// Choices answers an autocomplete request.
func Choices(choices []Choice) InteractionResponse {
	if choices == nil {
		choices = []Choice{}
	}
	return InteractionResponse{
		Type: ResponseAutocompleteResult,
		Data: &ResponseData{Choices: choices},
	}
}

// Message is a message as returned by the REST API.
type Message struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id,omitempty"`
	Author    *User        `json:"author,omitempty"`
	Content   string       `json:"content"`
	Embeds    []Embed      `json:"embeds,omitempty"`
	Flags     MessageFlags `json:"flags,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// Embed colours used by the bot.
const (
	ColorBlurple = 0x5865F2
	ColorGreen   = 0x57F287
	ColorYellow  = 0xFEE75C
	ColorRed     = 0xED4245
	ColorFuchsia = 0xEB459E
)

// Choice is an autocomplete suggestion or a fixed option choice. Value is
// a string, an int or a float64; decoding keeps integers as int so a
// descriptor survives a JSON round trip unchanged.
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.Value = nil
	if len(raw.Value) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("choice %q value: %w", raw.Name, err)
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(n.String()); err == nil {
			c.Value = i
			return nil
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("choice %q value: %w", raw.Name, err)
		}
		c.Value = f
	default:
		c.Value = v
	}
	return nil
}

// ApplicationCommand is a command descriptor as registered with the platform.
type ApplicationCommand struct {
	ID                       string          `json:"id,omitempty"`
	Type                     CommandType     `json:"type,omitempty"`
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Options                  []CommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *string         `json:"default_member_permissions,omitempty"`
	DMPermission             *bool           `json:"dm_permission,omitempty"`
}

// CommandOption describes one option of a command descriptor.
type CommandOption struct {
	Type         OptionType      `json:"type"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Required     bool            `json:"required,omitempty"`
	Autocomplete bool            `json:"autocomplete,omitempty"`
	Choices      []Choice        `json:"choices,omitempty"`
	Options      []CommandOption `json:"options,omitempty"`
	MinLength    *int            `json:"min_length,omitempty"`
	MaxLength    *int            `json:"max_length,omitempty"`
}
