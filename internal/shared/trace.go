package shared

import (
	"context"

	"github.com/google/uuid"
)

// noTrace is what logs and audit lines show for work that did not start
// from a webhook request, such as cron jobs or CLI subcommands.
const noTrace = "-"

type traceKey struct{}
type interactionIDKey struct{}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the request trace id, or "-" outside a request.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	return noTrace
}

func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns ctx unchanged when it already carries a trace id
// and otherwise attaches a fresh one.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := TraceID(ctx); id != noTrace {
		return ctx, id
	}
	id := NewTraceID()
	return WithTraceID(ctx, id), id
}

// WithInteractionID records the Discord interaction snowflake being handled.
func WithInteractionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, interactionIDKey{}, id)
}

func InteractionID(ctx context.Context) string {
	v, _ := ctx.Value(interactionIDKey{}).(string)
	return v
}
