package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/basket/haxxor-bunny/internal/bus"
)

// Recorder subscribes to the event bus and turns lifecycle events into
// metric updates, so publishers never touch the metrics SDK directly.
type Recorder struct {
	bus     *bus.Bus
	metrics *Metrics
	sub     *bus.Subscription
	wg      sync.WaitGroup
}

func NewRecorder(b *bus.Bus, m *Metrics) *Recorder {
	return &Recorder{bus: b, metrics: m}
}

// Start consumes events until ctx is done or Stop is called.
func (r *Recorder) Start(ctx context.Context) {
	r.sub = r.bus.Subscribe("")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-r.sub.Ch():
				if !ok {
					return
				}
				r.Record(ctx, ev)
			}
		}
	}()
}

func (r *Recorder) Stop() {
	if r.sub == nil {
		return
	}
	r.bus.Unsubscribe(r.sub)
	r.wg.Wait()
}

// Record applies a single event. Unknown topics are ignored.
func (r *Recorder) Record(ctx context.Context, ev bus.Event) {
	m := r.metrics
	switch ev.Topic {
	case bus.TopicInteractionReceived:
		if p, ok := ev.Payload.(bus.InteractionEvent); ok {
			m.InteractionsTotal.Add(ctx, 1, metric.WithAttributes(
				AttrInteractionKind.String(p.Kind),
				AttrCommand.String(p.Command),
			))
		}
	case bus.TopicInteractionCompleted:
		if p, ok := ev.Payload.(bus.InteractionEvent); ok {
			m.InteractionDuration.Record(ctx, p.Duration.Seconds(), metric.WithAttributes(
				AttrCommand.String(p.Command),
				AttrOutcome.String("ok"),
			))
		}
	case bus.TopicInteractionFailed:
		if p, ok := ev.Payload.(bus.InteractionEvent); ok {
			m.InteractionDuration.Record(ctx, p.Duration.Seconds(), metric.WithAttributes(
				AttrCommand.String(p.Command),
				AttrOutcome.String("error"),
			))
			m.InteractionErrors.Add(ctx, 1, metric.WithAttributes(
				AttrCommand.String(p.Command),
				attribute.Bool("haxxor.user_displayable", p.UserDisplayable),
			))
		}
	case bus.TopicInteractionDenied:
		if p, ok := ev.Payload.(bus.InteractionEvent); ok {
			m.PermissionDenied.Add(ctx, 1, metric.WithAttributes(AttrCommand.String(p.Command)))
		}
	case bus.TopicSideChannelCall:
		if p, ok := ev.Payload.(bus.SideChannelEvent); ok {
			outcome := "ok"
			if !p.OK {
				outcome = "error"
			}
			m.SideChannelCalls.Add(ctx, 1, metric.WithAttributes(
				attribute.String("haxxor.operation", p.Operation),
				AttrOutcome.String(outcome),
			))
		}
	case bus.TopicRateLimited:
		m.RateLimitRejects.Add(ctx, 1)
	}
}
