package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	AttrInteractionID   = attribute.Key("haxxor.interaction.id")
	AttrInteractionType = attribute.Key("haxxor.interaction.type")
	AttrInteractionKind = attribute.Key("haxxor.interaction.kind")
	AttrCommand         = attribute.Key("haxxor.command")
	AttrSubcommand      = attribute.Key("haxxor.subcommand")
	AttrUserID          = attribute.Key("haxxor.user.id")
	AttrDiscordRoute    = attribute.Key("haxxor.discord.route")
	AttrOutcome         = attribute.Key("haxxor.outcome")
)

// DispatchInfo names the interaction a dispatch span covers.
type DispatchInfo struct {
	InteractionID string
	Kind          string
	Command       string
	Subcommand    string
	UserID        string
}

// StartReceiveSpan opens the server span for one webhook POST.
func StartReceiveSpan(ctx context.Context, tracer trace.Tracer, route string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "interaction.receive",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
}

// StartDispatchSpan opens the span covering a handler run, which may
// outlive the receive span when the reply is deferred.
func StartDispatchSpan(ctx context.Context, tracer trace.Tracer, info DispatchInfo) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrInteractionID.String(info.InteractionID),
		AttrInteractionKind.String(info.Kind),
	}
	if info.Command != "" {
		attrs = append(attrs,
			AttrCommand.String(info.Command),
			AttrSubcommand.String(info.Subcommand),
			AttrUserID.String(info.UserID),
		)
	}
	return tracer.Start(ctx, "interaction.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartRESTSpan opens a client span for a Discord REST call. route must
// already have tokens stripped.
func StartRESTSpan(ctx context.Context, tracer trace.Tracer, method, route string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "discord.rest "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			AttrDiscordRoute.String(route),
		),
	)
}

// Fail marks span as errored with a short reason. err may be nil when the
// failure is a rejection rather than a Go error.
func Fail(span trace.Span, reason string, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, reason)
	span.SetAttributes(AttrOutcome.String("error"))
}

func Succeed(span trace.Span) {
	span.SetAttributes(AttrOutcome.String("ok"))
}
