// Package cdn keeps local copies of emoji images so embeds can be served
// from the bot's own HTTP surface.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basket/haxxor-bunny/internal/audit"
	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
)

const (
	DefaultMaxBytes  = 1 << 20
	maxFetchRedirect = 5
	syncConcurrency  = 4
	fetchTimeout     = 15 * time.Second
)

// ErrTooLarge is returned when a source image exceeds the size cap.
var ErrTooLarge = errors.New("cdn: image too large")

type Config struct {
	Store  *persistence.Store
	Policy policy.Checker
	Audit  *audit.Log
	Bus    *bus.Bus
	Logger *slog.Logger
	// MaxBytes caps a single cached image. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Resolve maps an emoji to its source image. Defaults to hi3.EmojiURL.
	Resolve    func(emoji string) (string, bool)
	HTTPClient *http.Client
}

// Service caches emoji images in the cdn_files table.
type Service struct {
	store    *persistence.Store
	policy   policy.Checker
	audit    *audit.Log
	bus      *bus.Bus
	logger   *slog.Logger
	maxBytes int64
	resolve  func(string) (string, bool)
	http     *http.Client
}

func New(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		policy:   cfg.Policy,
		audit:    cfg.Audit,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		maxBytes: cfg.MaxBytes,
		resolve:  cfg.Resolve,
		http:     cfg.HTTPClient,
	}
	if s.policy == nil {
		s.policy = policy.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.resolve == nil {
		s.resolve = hi3.EmojiURL
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: fetchTimeout}
	}
	// Redirects must stay inside the allow-list too.
	client := *s.http
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxFetchRedirect {
			return fmt.Errorf("stopped after %d redirects", maxFetchRedirect)
		}
		if !s.allowed(req.Context(), req.URL.String()) {
			return fmt.Errorf("policy denied redirect %q", req.URL.Redacted())
		}
		return nil
	}
	s.http = &client
	return s
}

// CacheEmoji downloads the image for emoji and stores it under the emoji
// itself. An emoji that is not a single emoji is a user error.
func (s *Service) CacheEmoji(ctx context.Context, emoji string) error {
	src, ok := s.resolve(emoji)
	if !ok {
		return interactions.UserError("❌ Invalid Emoji")
	}
	if !s.allowed(ctx, src) {
		return interactions.Internal("cache emoji", fmt.Errorf("policy denied %q", src))
	}
	data, contentType, err := s.fetch(ctx, src)
	if err != nil {
		return interactions.Internal("cache emoji", err)
	}
	if err := s.store.PutFile(ctx, persistence.File{
		Filename:    emoji,
		ContentType: contentType,
		Data:        data,
		SourceURL:   src,
	}); err != nil {
		return interactions.Internal("cache emoji", err)
	}
	s.logger.Debug("emoji cached", "emoji", emoji, "bytes", len(data))
	return nil
}

func (s *Service) allowed(ctx context.Context, raw string) bool {
	if s.policy.AllowHTTPURL(raw) {
		return true
	}
	s.audit.Record(ctx, audit.Entry{
		Decision:      audit.DecisionDeny,
		Command:       "cdn.fetch",
		Reason:        "url_denied",
		PolicyVersion: s.policy.PolicyVersion(),
		Subject:       raw,
	})
	return false
}

func (s *Service) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "HaxxorBunny/1.0 (emoji cache)")
	req.Header.Set("Accept", "image/*")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes from %s", ErrTooLarge, s.maxBytes, src)
	}
	return data, contentType(resp.Header.Get("Content-Type"), data), nil
}

func contentType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return http.DetectContentType(data)
}

// Open returns a cached file.
func (s *Service) Open(ctx context.Context, filename string) (*persistence.File, bool, error) {
	return s.store.GetFile(ctx, filename)
}

// Sync re-caches every emoji the catalog references. Individual failures
// are logged and counted; only a failure to list the catalog is returned.
func (s *Service) Sync(ctx context.Context) (bus.CDNSyncedEvent, error) {
	emojis, err := s.store.ListEmojiReferences(ctx)
	if err != nil {
		return bus.CDNSyncedEvent{}, err
	}
	var cached, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, e := range emojis {
		g.Go(func() error {
			if err := s.CacheEmoji(gctx, e); err != nil {
				failed.Add(1)
				s.logger.Warn("emoji sync failed", "emoji", e, "error", err)
				return nil
			}
			cached.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	ev := bus.CDNSyncedEvent{Cached: int(cached.Load()), Failed: int(failed.Load())}
	s.bus.Publish(bus.TopicCDNSynced, ev)
	s.logger.Info("cdn sync finished", "cached", ev.Cached, "failed", ev.Failed)
	return ev, ctx.Err()
}
