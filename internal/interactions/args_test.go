package interactions

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/basket/haxxor-bunny/internal/discord"
)

var testEmojiFormat = &jsonschema.Format{
	Name: "emoji",
	Validate: func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if s != "😀" && !strings.HasPrefix(s, "<:") {
			return errors.New("not an emoji")
		}
		return nil
	},
}

const testSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"emoji": {"type": "string", "format": "emoji"},
		"count": {"type": "integer", "minimum": 1, "maximum": 6}
	},
	"required": ["name"],
	"additionalProperties": false
}`

func TestArgSchemaBind(t *testing.T) {
	schema := MustArgSchema("test create", testSchema, testEmojiFormat)

	var got struct {
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
		Count int    `json:"count"`
	}
	opts := []discord.Option{
		{Name: "name", Type: discord.OptionString, Value: strValue("Kiana")},
		{Name: "emoji", Type: discord.OptionString, Value: strValue("😀")},
		{Name: "count", Type: discord.OptionInteger, Value: json.RawMessage("3")},
	}
	if err := schema.Bind(opts, &got); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got.Name != "Kiana" || got.Emoji != "😀" || got.Count != 3 {
		t.Fatalf("bound = %+v", got)
	}
}

func TestArgSchemaAggregatesInvalidFields(t *testing.T) {
	schema := MustArgSchema("test", testSchema, testEmojiFormat)

	tests := []struct {
		name   string
		opts   []discord.Option
		fields []string
	}{
		{"bad emoji", []discord.Option{
			{Name: "name", Type: discord.OptionString, Value: strValue("Kiana")},
			{Name: "emoji", Type: discord.OptionString, Value: strValue("nope")},
		}, []string{"emoji"}},
		{"missing name", []discord.Option{
			{Name: "emoji", Type: discord.OptionString, Value: strValue("😀")},
		}, []string{"name"}},
		{"two bad fields", []discord.Option{
			{Name: "name", Type: discord.OptionString, Value: strValue("Kiana")},
			{Name: "emoji", Type: discord.OptionString, Value: strValue("nope")},
			{Name: "count", Type: discord.OptionInteger, Value: json.RawMessage("9")},
		}, []string{"count", "emoji"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Bind(tt.opts, nil)
			var be *BotError
			if !errors.As(err, &be) || !be.UserDisplayable {
				t.Fatalf("err = %v, want displayable BotError", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want FieldError", err)
			}
			if strings.Join(fe.Fields, ",") != strings.Join(tt.fields, ",") {
				t.Fatalf("fields = %v, want %v", fe.Fields, tt.fields)
			}
			want := "❌ Invalid value for argument(s): `" + strings.Join(tt.fields, "`, `") + "`"
			if be.Message != want {
				t.Fatalf("message = %q, want %q", be.Message, want)
			}
		})
	}
}

func TestCompileArgSchemaRejectsBadDocument(t *testing.T) {
	if _, err := CompileArgSchema("broken", `{"type": `); err == nil {
		t.Fatal("expected parse error")
	}
}
