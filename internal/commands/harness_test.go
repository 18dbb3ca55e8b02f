package commands

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
)

const (
	ownerID    = "111111111111111111"
	strangerID = "222222222222222222"
)

type sentMessage struct {
	Op   string
	Data discord.MessageData
}

// recorder is both the initial-response sink and the webhook side channel.
type recorder struct {
	mu        sync.Mutex
	responses []discord.InteractionResponse
	messages  []sentMessage
}

func (r *recorder) Send(_ context.Context, resp discord.InteractionResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) add(op string, data discord.MessageData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sentMessage{Op: op, Data: data})
}

func (r *recorder) GetOriginalResponse(context.Context, string, string) (*discord.Message, error) {
	return &discord.Message{ID: "orig"}, nil
}

func (r *recorder) EditOriginalResponse(_ context.Context, _, _ string, data discord.MessageData) (*discord.Message, error) {
	r.add("edit", data)
	return &discord.Message{ID: "orig"}, nil
}

func (r *recorder) CreateFollowup(_ context.Context, _, _ string, data discord.MessageData) (*discord.Message, error) {
	r.add("followup", data)
	return &discord.Message{ID: "f"}, nil
}

func (r *recorder) ExecuteWebhook(_ context.Context, _, _ string, data discord.MessageData) error {
	r.add("error_followup", data)
	return nil
}

type fakeCDN struct {
	mu     sync.Mutex
	cached []string
	err    error
}

func (f *fakeCDN) CacheEmoji(_ context.Context, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cached = append(f.cached, emoji)
	return nil
}

type fakeUsers map[string]discord.User

func (f fakeUsers) GetUser(_ context.Context, id string) (*discord.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, &discord.APIError{Method: "GET", Path: "/users/" + id, Status: 404, Body: "Unknown User"}
	}
	return &u, nil
}

type harness struct {
	t     *testing.T
	store *persistence.Store
	cdn   *fakeCDN
	deps  Deps
	reg   *interactions.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "haxxor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{t: t, store: store, cdn: &fakeCDN{}}
	h.deps = Deps{
		Store:         store,
		CDN:           h.cdn,
		Users:         fakeUsers{"333333333333333333": {ID: "333333333333333333", Username: "mei"}},
		PublicBaseURL: "https://bunny.example",
	}
	h.reg, err = NewRegistry(h.deps)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return h
}

// run dispatches one command and returns everything the bot sent.
func (h *harness) run(userID, command string, opts ...discord.Option) *recorder {
	h.t.Helper()
	return h.dispatch(discord.InteractionApplicationCommand, userID, command, opts...)
}

func (h *harness) dispatch(typ discord.InteractionType, userID, command string, opts ...discord.Option) *recorder {
	h.t.Helper()
	rec := &recorder{}
	disp := interactions.NewDispatcher(interactions.DispatcherConfig{
		Registry: h.reg,
		Rest:     rec,
		Policy:   policy.Default().WithOwners(ownerID),
	})
	in := &discord.Interaction{
		ID:            "i-1",
		ApplicationID: "app",
		Token:         "tok",
		Type:          typ,
		Member:        &discord.Member{User: &discord.User{ID: userID, Username: "kiana"}},
		Data: &discord.InteractionData{
			ID:      "cmd",
			Name:    command,
			Type:    discord.CommandChatInput,
			Options: opts,
		},
	}
	disp.Dispatch(context.Background(), rec, in)
	return rec
}

// lastEdit is the final content of the deferred response.
func (r *recorder) lastEdit(t *testing.T) discord.MessageData {
	t.Helper()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Op == "edit" {
			return r.messages[i].Data
		}
	}
	t.Fatalf("no edit sent; messages=%+v responses=%+v", r.messages, r.responses)
	return discord.MessageData{}
}

func (r *recorder) followups() []discord.MessageData {
	var out []discord.MessageData
	for _, m := range r.messages {
		if m.Op == "followup" {
			out = append(out, m.Data)
		}
	}
	return out
}

// reply is the data of the single immediate reply.
func (r *recorder) reply(t *testing.T) discord.MessageData {
	t.Helper()
	if len(r.responses) != 1 || r.responses[0].Data == nil {
		t.Fatalf("want one reply with data, got %+v", r.responses)
	}
	return r.responses[0].Data.MessageData
}

func description(t *testing.T, data discord.MessageData) string {
	t.Helper()
	if len(data.Embeds) == 0 {
		t.Fatalf("no embeds in %+v", data)
	}
	return data.Embeds[0].Description
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func str(name, v string) discord.Option {
	return discord.Option{Name: name, Type: discord.OptionString, Value: raw(v)}
}

func boolean(name string, v bool) discord.Option {
	return discord.Option{Name: name, Type: discord.OptionBoolean, Value: raw(v)}
}

func integer(name string, v int) discord.Option {
	return discord.Option{Name: name, Type: discord.OptionInteger, Value: raw(v)}
}

func sub(name string, opts ...discord.Option) discord.Option {
	return discord.Option{Name: name, Type: discord.OptionSubCommand, Options: opts}
}
