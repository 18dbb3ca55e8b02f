package discord

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeInteraction(t *testing.T) {
	const payload = `{
		"id": "i1", "application_id": "app", "token": "tok", "type": 2,
		"member": {"user": {"id": "42", "username": "kiana", "global_name": "Kiana"}},
		"data": {
			"id": "c1", "name": "manage-valkyries", "type": 1,
			"options": [{"name": "update", "type": 1, "options": [
				{"name": "valk", "type": 3, "value": "abc", "focused": true},
				{"name": "aug-rank", "type": 4, "value": 3}
			]}]
		}
	}`
	var in Interaction
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u, ok := in.InvokingUser()
	if !ok || u.ID != "42" || u.DisplayName() != "Kiana" {
		t.Fatalf("invoking user = %+v, %v", u, ok)
	}

	path, leaves := Flatten(in.Data.Options)
	if diff := cmp.Diff([]string{"update"}, path); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}
	var got []string
	for _, o := range leaves {
		got = append(got, o.Name+"="+o.StringValue())
	}
	if diff := cmp.Diff([]string{"valk=abc", "aug-rank=3"}, got); diff != "" {
		t.Fatalf("leaves (-want +got):\n%s", diff)
	}
	f, ok := Focused(in.Data.Options)
	if !ok || f.Name != "valk" {
		t.Fatalf("focused = %+v, %v", f, ok)
	}
}

func TestFlattenWithoutSubcommand(t *testing.T) {
	opts := []Option{{Name: "character", Type: OptionString, Value: json.RawMessage(`"x"`)}}
	path, leaves := Flatten(opts)
	if len(path) != 0 || len(leaves) != 1 {
		t.Fatalf("path = %v, leaves = %v", path, leaves)
	}
	path, leaves = Flatten([]Option{{Name: "view", Type: OptionSubCommand}})
	if diff := cmp.Diff([]string{"view"}, path); diff != "" || len(leaves) != 0 {
		t.Fatalf("path = %v, leaves = %v", path, leaves)
	}
}

func TestResponseEncoding(t *testing.T) {
	tests := []struct {
		name string
		resp InteractionResponse
		want string
	}{
		{"pong", Pong(), `{"type":1}`},
		{"deferred", Deferred(false), `{"type":5}`},
		{"deferred ephemeral", Deferred(true), `{"type":5,"data":{"flags":64}}`},
		{"empty choices", Choices(nil), `{"type":8,"data":{"choices":[]}}`},
		{"choices", Choices([]Choice{{Name: "Kiana", Value: "id"}}), `{"type":8,"data":{"choices":[{"name":"Kiana","value":"id"}]}}`},
		{"reply", Reply(MessageData{Content: "hi", AllowedMentions: NoMentions()}), `{"type":4,"data":{"content":"hi","allowed_mentions":{"parse":[]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("got %s, want %s", b, tt.want)
			}
		})
	}
}

func TestAvatarURL(t *testing.T) {
	withAvatar := User{ID: "42", Avatar: "abc"}
	if got := withAvatar.AvatarURL(); got != CDNBaseURL+"/avatars/42/abc.png" {
		t.Fatalf("avatar = %q", got)
	}
	if got := (User{ID: "42"}).AvatarURL(); !strings.HasPrefix(got, CDNBaseURL+"/embed/avatars/") {
		t.Fatalf("default avatar = %q", got)
	}
}

func TestChoiceKeepsValueKind(t *testing.T) {
	in := []Choice{
		{Name: "core", Value: 3},
		{Name: "rank", Value: "ss1"},
		{Name: "ratio", Value: 1.5},
		{Name: "big", Value: 1 << 40},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Choice
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	if err := json.Unmarshal([]byte(`{"name":"x","value":{`), new(Choice)); err == nil {
		t.Fatal("malformed value accepted")
	}
}
