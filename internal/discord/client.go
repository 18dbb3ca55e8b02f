package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	otelPkg "github.com/basket/haxxor-bunny/internal/otel"
)

const (
	DefaultAPIBaseURL = "https://discord.com/api/v10"
	CDNBaseURL        = "https://cdn.discordapp.com"

	maxResponseBody     = 64 * 1024
	maxRateLimitRetries = 3
	maxRetryWait        = 10 * time.Second
	defaultHTTPTimeout  = 15 * time.Second
)

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL    string
	BotToken   string
	HTTPClient *http.Client
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Client talks to the Discord REST API with a bot credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// NewClient builds a client. Zero values fall back to the public API and
// a client with a bounded timeout.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otelPkg.TracerName)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: base, token: cfg.BotToken, http: hc, tracer: tracer, logger: logger}
}

func webhookPath(appID, token string) string {
	return "/webhooks/" + url.PathEscape(appID) + "/" + url.PathEscape(token)
}

// GetOriginalResponse fetches the message created by the interaction reply.
func (c *Client) GetOriginalResponse(ctx context.Context, appID, token string) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodGet, webhookPath(appID, token)+"/messages/@original", nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditOriginalResponse replaces the content of the interaction reply.
func (c *Client) EditOriginalResponse(ctx context.Context, appID, token string, data MessageData) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodPatch, webhookPath(appID, token)+"/messages/@original", data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateFollowup posts an additional message tied to the interaction.
func (c *Client) CreateFollowup(ctx context.Context, appID, token string, data MessageData) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodPost, webhookPath(appID, token)+"?wait=true", data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExecuteWebhook posts a message on the interaction webhook without
// waiting for the created message. It is used for error follow-ups, which
// must not depend on the original response being readable.
func (c *Client) ExecuteWebhook(ctx context.Context, appID, token string, data MessageData) error {
	return c.do(ctx, http.MethodPost, webhookPath(appID, token), data, nil)
}

// BulkOverwriteGlobalCommands replaces every global command of the application.
func (c *Client) BulkOverwriteGlobalCommands(ctx context.Context, appID string, cmds []ApplicationCommand) ([]ApplicationCommand, error) {
	var out []ApplicationCommand
	path := "/applications/" + url.PathEscape(appID) + "/commands"
	if err := c.do(ctx, http.MethodPut, path, cmds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkOverwriteGuildCommands replaces every command of the application in one guild.
func (c *Client) BulkOverwriteGuildCommands(ctx context.Context, appID, guildID string, cmds []ApplicationCommand) ([]ApplicationCommand, error) {
	var out []ApplicationCommand
	path := "/applications/" + url.PathEscape(appID) + "/guilds/" + url.PathEscape(guildID) + "/commands"
	if err := c.do(ctx, http.MethodPut, path, cmds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser looks up a user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	ctx, span := otelPkg.StartRESTSpan(ctx, c.tracer, method, routeLabel(path))
	defer span.End()

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, routeLabel(path), err)
		}
		body = b
	}

	for attempt := 0; ; attempt++ {
		status, respBody, header, err := c.send(ctx, method, path, body)
		if err != nil {
			otelPkg.Fail(span, "transport", err)
			return err
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))

		if status == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			wait := retryAfter(header, respBody)
			c.logger.Warn("discord rate limited", "route", routeLabel(path), "retry_after", wait.String(), "attempt", attempt+1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}
		if status >= 400 {
			apiErr := &APIError{Method: method, Path: routeLabel(path), Status: status, Body: string(respBody)}
			otelPkg.Fail(span, http.StatusText(status), apiErr)
			return apiErr
		}
		if out != nil && len(respBody) > 0 && status != http.StatusNoContent {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode %s %s: %w", method, routeLabel(path), err)
			}
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (int, []byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/basket/haxxor-bunny, 1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("discord api %s %s: %w", method, routeLabel(path), err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

func retryAfter(header http.Header, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	wait := time.Second
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		wait = time.Duration(payload.RetryAfter * float64(time.Second))
	} else if raw := header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			wait = time.Duration(secs * float64(time.Second))
		}
	}
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}

// routeLabel strips interaction tokens from a path so it can be logged.
func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/webhooks/") {
		return path
	}
	parts := strings.SplitN(strings.TrimPrefix(path, "/webhooks/"), "/", 3)
	label := "/webhooks/" + parts[0] + "/:token"
	if len(parts) == 3 {
		label += "/" + parts[2]
	}
	return label
}
