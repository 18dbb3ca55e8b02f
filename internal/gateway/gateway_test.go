package gateway_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/gateway"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
)

type dispatchFunc func(ctx context.Context, sink interactions.Sink, in *discord.Interaction)

func (f dispatchFunc) Dispatch(ctx context.Context, sink interactions.Sink, in *discord.Interaction) {
	f(ctx, sink, in)
}

type mediaMap map[string]*persistence.File

func (m mediaMap) Open(_ context.Context, name string) (*persistence.File, bool, error) {
	f, ok := m[name]
	return f, ok, nil
}

type testServer struct {
	srv  *gateway.Server
	http http.Handler
	priv ed25519.PrivateKey
}

func newTestServer(t *testing.T, d gateway.Dispatcher, mutate func(*gateway.Config)) *testServer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	v, err := interactions.NewVerifier(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	cfg := gateway.Config{
		Verifier:     v,
		Dispatcher:   d,
		Policy:       policy.Default(),
		ReplyTimeout: 500 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := gateway.New(cfg)
	return &testServer{srv: srv, http: srv.Handler(), priv: priv}
}

func (s *testServer) post(body string, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(body))
	if signed {
		ts := "1700000000"
		sig := ed25519.Sign(s.priv, append([]byte(ts), body...))
		req.Header.Set(interactions.HeaderSignature, hex.EncodeToString(sig))
		req.Header.Set(interactions.HeaderTimestamp, ts)
	}
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

const (
	pingBody    = `{"id":"i1","application_id":"app","token":"tok","type":1}`
	commandBody = `{"id":"i2","application_id":"app","token":"tok","type":2,"data":{"name":"info"}}`
	autoBody    = `{"id":"i3","application_id":"app","token":"tok","type":4,"data":{"name":"valkyries"}}`
)

func pong(ctx context.Context, sink interactions.Sink, _ *discord.Interaction) {
	_ = sink.Send(ctx, discord.Pong())
}

func TestInteractionRejects(t *testing.T) {
	s := newTestServer(t, dispatchFunc(pong), nil)

	rec := s.get("/interactions")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("GET: %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
	if rec := s.post(pingBody, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned: %d", rec.Code)
	}
	if rec := s.post(`{not json`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestInteractionReply(t *testing.T) {
	var sendErr = make(chan error, 1)
	s := newTestServer(t, dispatchFunc(func(ctx context.Context, sink interactions.Sink, in *discord.Interaction) {
		sendErr <- sink.Send(ctx, discord.Pong())
	}), nil)

	for _, path := range []string{"/interactions", "/api/discord/interactions"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(pingBody))
		sig := ed25519.Sign(s.priv, append([]byte("1"), pingBody...))
		req.Header.Set(interactions.HeaderSignature, hex.EncodeToString(sig))
		req.Header.Set(interactions.HeaderTimestamp, "1")
		rec := httptest.NewRecorder()
		s.http.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"type":1}` {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
		if err := <-sendErr; err != nil {
			t.Fatalf("%s: Send returned %v", path, err)
		}
	}
}

func TestDeferredWorkOutlivesRequest(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)
	s := newTestServer(t, dispatchFunc(func(ctx context.Context, sink interactions.Sink, in *discord.Interaction) {
		if err := sink.Send(ctx, discord.Deferred(false)); err != nil {
			finished <- err
			return
		}
		<-release
		finished <- ctx.Err()
	}), nil)

	rec := s.post(commandBody, true)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"type":5}` {
		t.Fatalf("reply: %d %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.srv.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain with work in flight = %v", err)
	}

	close(release)
	if err := <-finished; err != nil {
		t.Fatalf("dispatch context cancelled after reply: %v", err)
	}
	if err := s.srv.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestDispatchEndsWithoutReply(t *testing.T) {
	silent := dispatchFunc(func(context.Context, interactions.Sink, *discord.Interaction) {})
	s := newTestServer(t, silent, nil)

	rec := s.post(autoBody, true)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"type":8,"data":{"choices":[]}}` {
		t.Fatalf("autocomplete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.post(commandBody, true); rec.Code != http.StatusInternalServerError {
		t.Fatalf("command: %d", rec.Code)
	}
}

func TestReplyTimeout(t *testing.T) {
	release := make(chan struct{})
	sendErr := make(chan error, 1)
	s := newTestServer(t, dispatchFunc(func(ctx context.Context, sink interactions.Sink, in *discord.Interaction) {
		<-release
		sendErr <- sink.Send(ctx, discord.Pong())
	}), func(c *gateway.Config) { c.ReplyTimeout = 20 * time.Millisecond })

	if rec := s.post(commandBody, true); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	close(release)
	if err := <-sendErr; !errors.Is(err, interactions.ErrTransportClosed) {
		t.Fatalf("late Send = %v", err)
	}
}

func TestHealthz(t *testing.T) {
	store, err := persistence.Open(filepath.Join(t.TempDir(), "haxxor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	s := newTestServer(t, dispatchFunc(pong), func(c *gateway.Config) {
		c.Store = store
		c.ConfigFingerprint = "fp"
	})
	rec := s.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["db_ok"] != true || body["config_fingerprint"] != "fp" || body["policy_version"] == "" || body["bus_dropped"] != float64(0) {
		t.Fatalf("body = %v", body)
	}

	down := newTestServer(t, dispatchFunc(pong), nil)
	if rec := down.get("/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without store: %d", rec.Code)
	}
}

func TestCDNAndInvite(t *testing.T) {
	media := mediaMap{"🔥": {Filename: "🔥", ContentType: "image/png", Data: []byte("png"), UpdatedAt: time.Now()}}
	s := newTestServer(t, dispatchFunc(pong), func(c *gateway.Config) {
		c.Media = media
		c.InviteURL = "https://discord.com/oauth2/authorize?client_id=app"
	})

	rec := s.get("/cdn/%F0%9F%94%A5")
	if rec.Code != http.StatusOK || rec.Body.String() != "png" || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("cdn hit: %d %q %q", rec.Code, rec.Body.String(), rec.Header().Get("Content-Type"))
	}
	if rec := s.get("/cdn/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("cdn miss: %d", rec.Code)
	}
	rec = s.get("/invite")
	if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "https://discord.com/") {
		t.Fatalf("invite: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	bare := newTestServer(t, dispatchFunc(pong), nil)
	if rec := bare.get("/invite"); rec.Code != http.StatusNotFound {
		t.Fatalf("invite without url: %d", rec.Code)
	}
}
