// Package gateway is the bot's HTTP surface: the signed interactions
// webhook plus a few small helper endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/config"
	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/interactions"
	otelPkg "github.com/basket/haxxor-bunny/internal/otel"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
	"github.com/basket/haxxor-bunny/internal/shared"
)

const (
	maxInteractionBody  = 1 << 20
	defaultReplyTimeout = 3 * time.Second
)

// Dispatcher runs one verified interaction. *interactions.Dispatcher
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sink interactions.Sink, in *discord.Interaction)
}

// MediaStore serves cached files. *cdn.Service implements it.
type MediaStore interface {
	Open(ctx context.Context, filename string) (*persistence.File, bool, error)
}

type Config struct {
	Verifier   *interactions.Verifier
	Dispatcher Dispatcher
	Store      *persistence.Store
	// Media may be nil, in which case /cdn answers 404.
	Media  MediaStore
	Policy policy.Checker
	Bus    *bus.Bus
	Tracer trace.Tracer
	Logger *slog.Logger

	ConfigFingerprint string
	InviteURL         string
	// ReplyTimeout bounds the wait for the dispatcher's first reply.
	ReplyTimeout time.Duration
	RateLimit    config.RateLimitConfig
}

type Server struct {
	cfg      Config
	limiter  *Limiter
	inflight sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaultReplyTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = nooptrace.NewTracerProvider().Tracer(otelPkg.TracerName)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		limiter: NewLimiter(cfg.RateLimit, cfg.Bus),
	}
}

// Limiter exposes the rate limiter so the caller can start eviction.
func (s *Server) Limiter() *Limiter { return s.limiter }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/interactions", s.handleInteraction)
	mux.HandleFunc("/api/discord/interactions", s.handleInteraction)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("GET /cdn/{filename}", s.handleCDN)
	mux.HandleFunc("GET /invite", s.handleInvite)
	return s.limiter.Wrap(mux)
}

// Drain waits for dispatches still running after their reply, such as
// deferred commands editing their response.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	traceID := shared.NewTraceID()
	ctx := shared.WithTraceID(r.Context(), traceID)
	ctx, span := otelPkg.StartReceiveSpan(ctx, s.cfg.Tracer, r.URL.Path)
	defer span.End()
	logger := s.cfg.Logger.With("trace_id", traceID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInteractionBody))
	if err != nil {
		otelPkg.Fail(span, "read body", err)
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !s.cfg.Verifier.Verify(r.Header, body) {
		otelPkg.Fail(span, "bad signature", nil)
		logger.Warn("interaction signature rejected", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid request signature")
		return
	}
	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		otelPkg.Fail(span, "bad payload", err)
		writeError(w, http.StatusBadRequest, "invalid interaction payload")
		return
	}
	span.SetAttributes(
		otelPkg.AttrInteractionID.String(in.ID),
		otelPkg.AttrInteractionType.String(in.Type.String()),
	)

	sink := newWebhookSink()
	finished := make(chan struct{})
	// Work after the reply outlives this request, so it must not inherit
	// its cancellation.
	dctx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(finished)
		s.cfg.Dispatcher.Dispatch(dctx, sink, &in)
	}()

	timer := time.NewTimer(s.cfg.ReplyTimeout)
	defer timer.Stop()
	select {
	case p := <-sink.replies:
		p.done <- writeResponse(w, p.resp)
	case <-finished:
		sink.abandon()
		if in.Type == discord.InteractionApplicationCommandAutocomplete {
			_ = writeResponse(w, discord.Choices(nil))
			return
		}
		logger.Error("interaction finished without a reply", "interaction_id", in.ID)
		otelPkg.Fail(span, "no reply", nil)
		writeError(w, http.StatusInternalServerError, "no reply")
	case <-timer.C:
		sink.abandon()
		logger.Error("interaction reply timed out", "interaction_id", in.ID, "timeout", s.cfg.ReplyTimeout.String())
		otelPkg.Fail(span, "reply timeout", nil)
		writeError(w, http.StatusServiceUnavailable, "reply timed out")
	case <-r.Context().Done():
		sink.abandon()
	}
}

func writeResponse(w http.ResponseWriter, resp discord.InteractionResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode reply")
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// webhookSink hands the dispatcher's first reply to the waiting HTTP
// handler and reports back whether it was written.
type webhookSink struct {
	replies   chan pendingReply
	abandoned chan struct{}
	once      sync.Once
}

type pendingReply struct {
	resp discord.InteractionResponse
	done chan error
}

func newWebhookSink() *webhookSink {
	return &webhookSink{
		replies:   make(chan pendingReply),
		abandoned: make(chan struct{}),
	}
}

func (s *webhookSink) abandon() {
	s.once.Do(func() { close(s.abandoned) })
}

func (s *webhookSink) Send(ctx context.Context, resp discord.InteractionResponse) error {
	p := pendingReply{resp: resp, done: make(chan error, 1)}
	select {
	case s.replies <- p:
	case <-s.abandoned:
		return interactions.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbOK := s.cfg.Store != nil && s.cfg.Store.Ping(ctx) == nil
	policyVersion := ""
	if s.cfg.Policy != nil {
		policyVersion = s.cfg.Policy.PolicyVersion()
	}
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy":            dbOK,
		"db_ok":              dbOK,
		"policy_version":     policyVersion,
		"config_fingerprint": s.cfg.ConfigFingerprint,
		"bus_dropped":        s.cfg.Bus.Dropped(),
	})
}

func (s *Server) handleCDN(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Media == nil {
		http.NotFound(w, r)
		return
	}
	f, found, err := s.cfg.Media.Open(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.cfg.Logger.Error("cdn lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, "", f.UpdatedAt, bytes.NewReader(f.Data))
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	if s.cfg.InviteURL == "" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, s.cfg.InviteURL, http.StatusFound)
}
