package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds the bot's metric instruments.
type Metrics struct {
	InteractionsTotal   metric.Int64Counter
	InteractionDuration metric.Float64Histogram
	InteractionErrors   metric.Int64Counter
	PermissionDenied    metric.Int64Counter
	SideChannelCalls    metric.Int64Counter
	RateLimitRejects    metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.InteractionsTotal, err = meter.Int64Counter("haxxor.interaction.count",
		metric.WithDescription("Interactions received, by kind and command"),
	)
	if err != nil {
		return nil, err
	}

	m.InteractionDuration, err = meter.Float64Histogram("haxxor.interaction.duration",
		metric.WithDescription("Time from dispatch to handler completion in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.InteractionErrors, err = meter.Int64Counter("haxxor.interaction.errors",
		metric.WithDescription("Handler failures, by command and displayability"),
	)
	if err != nil {
		return nil, err
	}

	m.PermissionDenied, err = meter.Int64Counter("haxxor.permission.denied",
		metric.WithDescription("Restricted command invocations rejected by the allow-list"),
	)
	if err != nil {
		return nil, err
	}

	m.SideChannelCalls, err = meter.Int64Counter("haxxor.followup.calls",
		metric.WithDescription("Side channel calls (edit, follow-up, fetch) by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.RateLimitRejects, err = meter.Int64Counter("haxxor.ratelimit.rejects",
		metric.WithDescription("Requests rejected by rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
