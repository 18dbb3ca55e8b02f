package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("disabled provider must still hand out noop tracer and meter")
	}
	if p.TracerProvider != nil {
		t.Fatal("disabled provider built an sdk tracer provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInit_Exporters(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		wantErr  bool
	}{
		{name: "none", exporter: ExporterNone},
		{name: "stdout", exporter: ExporterStdout},
		{name: "unknown", exporter: "magic-pixie-dust", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Init(context.Background(), Config{Enabled: true, Exporter: tc.exporter, SampleRate: 0.5})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			defer p.Shutdown(context.Background())
			if p.TracerProvider == nil || p.Tracer == nil || p.Meter == nil {
				t.Fatalf("incomplete provider: %+v", p)
			}
			_, span := p.Tracer.Start(context.Background(), "probe")
			span.End()
		})
	}
}

func TestSampleRate(t *testing.T) {
	for in, want := range map[float64]float64{0: 1, -1: 1, 2: 1, 0.25: 0.25, 1: 1} {
		if got := sampleRate(in); got != want {
			t.Errorf("sampleRate(%v) = %v, want %v", in, got, want)
		}
	}
}

func recordingTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer(TracerName), rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]string {
	m := make(map[attribute.Key]string, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value.Emit()
	}
	return m
}

func TestDispatchSpan(t *testing.T) {
	tracer, rec := recordingTracer(t)

	_, span := StartDispatchSpan(context.Background(), tracer, DispatchInfo{
		InteractionID: "1234",
		Kind:          "command",
		Command:       "valkyries",
		Subcommand:    "",
		UserID:        "42",
	})
	Fail(span, "interaction failed", errors.New("boom"))
	span.End()

	_, ping := StartDispatchSpan(context.Background(), tracer, DispatchInfo{InteractionID: "5", Kind: "ping"})
	Succeed(ping)
	ping.End()

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	cmd := ended[0]
	if cmd.Name() != "interaction.dispatch" || cmd.SpanKind() != trace.SpanKindInternal {
		t.Fatalf("span = %s kind %v", cmd.Name(), cmd.SpanKind())
	}
	attrs := attrMap(cmd.Attributes())
	if attrs[AttrCommand] != "valkyries" || attrs[AttrUserID] != "42" || attrs[AttrOutcome] != "error" {
		t.Fatalf("attrs = %v", attrs)
	}
	if cmd.Status().Code != codes.Error || len(cmd.Events()) != 1 {
		t.Fatalf("status = %+v events = %d", cmd.Status(), len(cmd.Events()))
	}

	pingAttrs := attrMap(ended[1].Attributes())
	if _, ok := pingAttrs[AttrCommand]; ok {
		t.Fatal("ping span carries a command attribute")
	}
	if pingAttrs[AttrOutcome] != "ok" {
		t.Fatalf("ping attrs = %v", pingAttrs)
	}
}

func TestReceiveAndRESTSpans(t *testing.T) {
	tracer, rec := recordingTracer(t)

	_, recv := StartReceiveSpan(context.Background(), tracer, "/interactions")
	Fail(recv, "bad signature", nil)
	recv.End()

	_, rest := StartRESTSpan(context.Background(), tracer, "PATCH", "/webhooks/1/:token/messages/@original")
	rest.End()

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].SpanKind() != trace.SpanKindServer || ended[0].Status().Code != codes.Error {
		t.Fatalf("receive span kind %v status %+v", ended[0].SpanKind(), ended[0].Status())
	}
	if len(ended[0].Events()) != 0 {
		t.Fatal("rejection without error recorded an exception event")
	}
	if ended[1].Name() != "discord.rest PATCH" || ended[1].SpanKind() != trace.SpanKindClient {
		t.Fatalf("rest span = %s kind %v", ended[1].Name(), ended[1].SpanKind())
	}
	if got := attrMap(ended[1].Attributes())[AttrDiscordRoute]; got != "/webhooks/1/:token/messages/@original" {
		t.Fatalf("route = %q", got)
	}
}
