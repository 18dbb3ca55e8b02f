package interactions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/basket/haxxor-bunny/internal/discord"
)

type recordingSink struct {
	mu        sync.Mutex
	responses []discord.InteractionResponse
	err       error
}

func (s *recordingSink) Send(_ context.Context, resp discord.InteractionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return s.err
}

func (s *recordingSink) sent() []discord.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]discord.InteractionResponse(nil), s.responses...)
}

type restCall struct {
	Op   string
	Data discord.MessageData
}

type fakeRest struct {
	mu    sync.Mutex
	calls []restCall
	err   error
}

func (f *fakeRest) record(op string, data discord.MessageData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, restCall{Op: op, Data: data})
	return f.err
}

func (f *fakeRest) GetOriginalResponse(_ context.Context, _, _ string) (*discord.Message, error) {
	if err := f.record("get_original", discord.MessageData{}); err != nil {
		return nil, err
	}
	return &discord.Message{ID: "orig"}, nil
}

func (f *fakeRest) EditOriginalResponse(_ context.Context, _, _ string, data discord.MessageData) (*discord.Message, error) {
	if err := f.record("edit_original", data); err != nil {
		return nil, err
	}
	return &discord.Message{ID: "orig", Content: data.Content}, nil
}

func (f *fakeRest) CreateFollowup(_ context.Context, _, _ string, data discord.MessageData) (*discord.Message, error) {
	if err := f.record("followup", data); err != nil {
		return nil, err
	}
	return &discord.Message{ID: "f1", Content: data.Content}, nil
}

func (f *fakeRest) ExecuteWebhook(_ context.Context, _, _ string, data discord.MessageData) error {
	return f.record("execute_webhook", data)
}

func (f *fakeRest) recorded() []restCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]restCall(nil), f.calls...)
}

func strValue(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func commandInteraction(name string, userID string, opts ...discord.Option) *discord.Interaction {
	return &discord.Interaction{
		ID:            "i-1",
		ApplicationID: "app",
		Token:         "tok",
		Type:          discord.InteractionApplicationCommand,
		Member:        &discord.Member{User: &discord.User{ID: userID, Username: "kiana"}},
		Data: &discord.InteractionData{
			ID:      "cmd-1",
			Name:    name,
			Type:    discord.CommandChatInput,
			Options: opts,
		},
	}
}
