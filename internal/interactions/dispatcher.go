package interactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/haxxor-bunny/internal/audit"
	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/discord"
	otelPkg "github.com/basket/haxxor-bunny/internal/otel"
	"github.com/basket/haxxor-bunny/internal/policy"
	"github.com/basket/haxxor-bunny/internal/shared"
)

// MaxChoices is the most autocomplete suggestions the platform accepts.
const MaxChoices = 25

const defaultDispatchTimeout = 15 * time.Minute

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Rest     SideChannel
	Policy   policy.Checker
	Audit    *audit.Log
	Bus      *bus.Bus
	Tracer   trace.Tracer
	Logger   *slog.Logger
	// Timeout bounds one dispatch, including work after the first reply.
	Timeout time.Duration
}

// Dispatcher routes classified interactions to commands and owns the
// error policy: only displayable BotErrors reach the user verbatim.
type Dispatcher struct {
	registry *Registry
	rest     SideChannel
	policy   policy.Checker
	audit    *audit.Log
	bus      *bus.Bus
	tracer   trace.Tracer
	logger   *slog.Logger
	timeout  time.Duration
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		registry: cfg.Registry,
		rest:     cfg.Rest,
		policy:   cfg.Policy,
		audit:    cfg.Audit,
		bus:      cfg.Bus,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		timeout:  cfg.Timeout,
	}
	if d.registry == nil {
		d.registry, _ = NewRegistry()
	}
	if d.policy == nil {
		d.policy = policy.Default()
	}
	if d.tracer == nil {
		d.tracer = nooptrace.NewTracerProvider().Tracer(otelPkg.TracerName)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.timeout <= 0 {
		d.timeout = defaultDispatchTimeout
	}
	return d
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch handles one verified interaction end to end. The first reply
// goes out through sink; it never returns an error because every failure
// is either delivered to the user or logged.
func (d *Dispatcher) Dispatch(ctx context.Context, sink Sink, in *discord.Interaction) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ctx, traceID := shared.EnsureTraceID(ctx)
	ctx = shared.WithInteractionID(ctx, in.ID)

	cls := Decode(in)
	user, _ := in.InvokingUser()
	ch := NewResponseChannel(in, sink, d.rest, d.bus)
	logger := d.logger.With(
		"interaction_id", in.ID,
		"trace_id", traceID,
		"kind", cls.Kind.String(),
	)
	if cls.CommandName != "" {
		logger = logger.With(
			"command", cls.CommandName,
			"command_id", cls.CommandID,
			"subcommand", cls.Subcommand,
			"user_id", user.ID,
			"user_name", user.Username,
		)
	}

	ctx, span := otelPkg.StartDispatchSpan(ctx, d.tracer, otelPkg.DispatchInfo{
		InteractionID: in.ID,
		Kind:          cls.Kind.String(),
		Command:       cls.CommandName,
		Subcommand:    cls.Subcommand,
		UserID:        user.ID,
	})
	defer span.End()

	ev := bus.InteractionEvent{
		InteractionID: in.ID,
		Kind:          cls.Kind.String(),
		Command:       cls.CommandName,
		Subcommand:    cls.Subcommand,
		UserID:        user.ID,
	}
	d.bus.Publish(bus.TopicInteractionReceived, ev)

	call := &Call{
		Channel:     ch,
		Interaction: in,
		User:        user,
		Command:     cls.CommandName,
		Subcommand:  cls.Subcommand,
		Options:     cls.Options,
		Focused:     cls.Focused,
		Logger:      logger,
	}

	start := time.Now()
	var err error
	switch cls.Kind {
	case KindPing:
		if err = ch.Respond(ctx, discord.Pong()); err != nil {
			logger.Error("pong failed", "error", err)
		}
	case KindCommand:
		err = d.dispatchCommand(ctx, call)
	case KindAutocomplete:
		d.dispatchAutocomplete(ctx, call)
	default:
		logger.Warn("unexpected interaction", "type", in.Type.String())
		if err = ch.Reply(ctx, ephemeral(UnknownTypeMessage)); err != nil {
			logger.Error("reply to unexpected interaction failed", "error", err)
		}
	}
	ev.Duration = time.Since(start)

	if err != nil {
		otelPkg.Fail(span, "interaction failed", err)
		_, ev.UserDisplayable = PublicMessage(err)
		ev.Err = err.Error()
		d.bus.Publish(bus.TopicInteractionFailed, ev)
		return
	}
	otelPkg.Succeed(span)
	d.bus.Publish(bus.TopicInteractionCompleted, ev)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, call *Call) error {
	logger := call.Logger
	logger.Info("command started")
	start := time.Now()

	err := d.runCommand(ctx, call)
	if err == nil && call.Channel.State() == StatePending {
		err = Internal("handler finished without responding", nil)
	}
	if err != nil {
		d.deliverFailure(ctx, call, err)
	}
	logger.Info("command finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"state", call.Channel.State().String(),
		"ok", err == nil,
	)
	return err
}

func (d *Dispatcher) runCommand(ctx context.Context, call *Call) (err error) {
	cmd, ok := d.registry.Lookup(call.Command)
	if !ok {
		return Internal(fmt.Sprintf("command %q", call.Command), ErrUnknownCommand)
	}
	if cmd.Restricted {
		if !d.authorize(ctx, call) {
			return PermissionDenied()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			call.Logger.Error("command panicked", "panic", r, "stack", string(debug.Stack()))
			err = Internal("command panicked", fmt.Errorf("%v", r))
		}
	}()
	return cmd.Handler.Handle(ctx, call)
}

func (d *Dispatcher) authorize(ctx context.Context, call *Call) bool {
	allowed := d.policy.AllowUser(call.User.ID)
	entry := audit.Entry{
		Command:       call.Command,
		PolicyVersion: d.policy.PolicyVersion(),
		Subject:       "user:" + call.User.ID,
	}
	if allowed {
		entry.Decision = audit.DecisionAllow
		entry.Reason = "owner"
	} else {
		entry.Decision = audit.DecisionDeny
		entry.Reason = "not in owner allow-list"
		d.bus.Publish(bus.TopicInteractionDenied, bus.InteractionEvent{
			InteractionID: call.Interaction.ID,
			Kind:          KindCommand.String(),
			Command:       call.Command,
			Subcommand:    call.Subcommand,
			UserID:        call.User.ID,
		})
	}
	d.audit.Record(ctx, entry)
	return allowed
}

// deliverFailure shows the failure on whichever path is still open.
func (d *Dispatcher) deliverFailure(ctx context.Context, call *Call, err error) {
	logger := call.Logger
	msg, displayable := PublicMessage(err)
	switch {
	case errors.Is(err, ErrAlreadyResponded), errors.Is(err, ErrNotResponded):
		logger.Error("command misused the response channel", "error", err)
	case displayable:
		logger.Info("command rejected", "reason", msg)
	default:
		logger.Error("command failed", "error", err)
	}

	data := ephemeral(msg)
	switch state := call.Channel.State(); state {
	case StatePending:
		if sendErr := call.Channel.Reply(ctx, data); sendErr != nil {
			logger.Error("error reply failed", "error", sendErr)
		}
	case StateSent:
		if sendErr := call.Channel.SendErrorFollowup(ctx, data); sendErr != nil {
			logger.Error("error follow-up failed", "error", sendErr)
		}
	default:
		logger.Warn("error not delivered", "state", state.String())
	}
}

// dispatchAutocomplete never surfaces errors; an empty suggestion list
// is the fallback for anything that goes wrong.
func (d *Dispatcher) dispatchAutocomplete(ctx context.Context, call *Call) {
	logger := call.Logger
	choices, err := d.autocomplete(ctx, call)
	if err != nil {
		logger.Warn("autocomplete failed", "error", err)
		choices = nil
	}
	if len(choices) > MaxChoices {
		choices = choices[:MaxChoices]
	}
	if call.Channel.State() != StatePending {
		return
	}
	if err := call.Channel.Autocomplete(ctx, choices); err != nil {
		logger.Error("autocomplete reply failed", "error", err)
	}
}

func (d *Dispatcher) autocomplete(ctx context.Context, call *Call) (choices []discord.Choice, err error) {
	cmd, ok := d.registry.Lookup(call.Command)
	if !ok {
		return nil, ErrUnknownCommand
	}
	if cmd.Restricted && !d.policy.AllowUser(call.User.ID) {
		return nil, nil
	}
	ac, ok := cmd.Handler.(Autocompleter)
	if !ok {
		return nil, fmt.Errorf("command %q has no autocomplete", call.Command)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autocomplete panicked: %v", r)
		}
	}()
	return ac.Autocomplete(ctx, call)
}

func ephemeral(content string) discord.MessageData {
	return discord.MessageData{
		Content:         content,
		Flags:           discord.FlagEphemeral,
		AllowedMentions: discord.NoMentions(),
	}
}
