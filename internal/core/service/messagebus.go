package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

var ErrHandlerConfiguration = errors.New("handler configuration")

const tracerName = "github.com/rl1809/batch-allocation/internal/core/service"

// CommandFunc runs a command inside uow. The bus commits uow when it returns
// without error.
type CommandFunc func(ctx context.Context, cmd domain.Command, uow port.UnitOfWork) (any, error)

// EventFunc reacts to an event inside its own uow.
type EventFunc func(ctx context.Context, evt domain.Event, uow port.UnitOfWork) error

type CommandRoute struct {
	Command string
	Handle  CommandFunc
}

type EventRoute struct {
	Event  string
	Name   string
	Handle EventFunc
}

// CommandHandler routes the command type C to handle.
func CommandHandler[C domain.Command](handle func(ctx context.Context, cmd C, uow port.UnitOfWork) (any, error)) CommandRoute {
	var zero C
	name := zero.MessageName()
	return CommandRoute{
		Command: name,
		Handle: func(ctx context.Context, cmd domain.Command, uow port.UnitOfWork) (any, error) {
			c, ok := cmd.(C)
			if !ok {
				return nil, fmt.Errorf("%w: %T routed to %s handler", ErrHandlerConfiguration, cmd, name)
			}
			return handle(ctx, c, uow)
		},
	}
}

// EventHandler routes the event type E to handle. name identifies the
// handler in logs and spans.
func EventHandler[E domain.Event](name string, handle func(ctx context.Context, evt E, uow port.UnitOfWork) error) EventRoute {
	var zero E
	event := zero.MessageName()
	return EventRoute{
		Event: event,
		Name:  name,
		Handle: func(ctx context.Context, evt domain.Event, uow port.UnitOfWork) error {
			e, ok := evt.(E)
			if !ok {
				return fmt.Errorf("%w: %T routed to %s handler", ErrHandlerConfiguration, evt, event)
			}
			return handle(ctx, e, uow)
		},
	}
}

// MessageBus dispatches a command and every event it leads to, breadth
// first. Each handler invocation gets a fresh unit of work.
type MessageBus struct {
	uows     port.UnitOfWorkFactory
	logger   *zap.Logger
	tracer   trace.Tracer
	commands map[string]CommandFunc
	events   map[string][]EventRoute
}

// NewMessageBus checks that every command variant has exactly one route.
func NewMessageBus(uows port.UnitOfWorkFactory, logger *zap.Logger, commands []CommandRoute, events []EventRoute) (*MessageBus, error) {
	b := &MessageBus{
		uows:     uows,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		commands: make(map[string]CommandFunc, len(commands)),
		events:   make(map[string][]EventRoute),
	}

	for _, route := range commands {
		if _, ok := b.commands[route.Command]; ok {
			return nil, fmt.Errorf("%w: command %s has more than one handler", ErrHandlerConfiguration, route.Command)
		}
		b.commands[route.Command] = route.Handle
	}
	for _, cmd := range domain.Commands() {
		if _, ok := b.commands[cmd.MessageName()]; !ok {
			return nil, fmt.Errorf("%w: command %s has no handler", ErrHandlerConfiguration, cmd.MessageName())
		}
	}

	for _, route := range events {
		b.events[route.Event] = append(b.events[route.Event], route)
	}
	return b, nil
}

// Handle dispatches msg and the events that follow from it until nothing is
// left to do. It returns the values produced by command handlers, in order.
// A command handler error stops the run and is returned as is; event handler
// errors are logged and skipped.
func (b *MessageBus) Handle(ctx context.Context, msg domain.Message) ([]any, error) {
	queue := []domain.Message{msg}
	var results []any

	for len(queue) > 0 {
		msg, queue = queue[0], queue[1:]

		var events []domain.Event
		switch m := msg.(type) {
		case domain.Command:
			result, produced, err := b.handleCommand(ctx, m)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
			events = produced
		case domain.Event:
			events = b.handleEvent(ctx, m)
		default:
			return nil, fmt.Errorf("%w: %T is neither a command nor an event", ErrHandlerConfiguration, msg)
		}

		for _, evt := range events {
			queue = append(queue, evt)
		}
	}
	return results, nil
}

func (b *MessageBus) handleCommand(ctx context.Context, cmd domain.Command) (any, []domain.Event, error) {
	name := cmd.MessageName()
	handle, ok := b.commands[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: command %s has no handler", ErrHandlerConfiguration, name)
	}

	id := uuid.NewString()
	ctx, span := b.tracer.Start(ctx, "command "+name, trace.WithAttributes(
		attribute.String("message.name", name),
		attribute.String("message.id", id),
	))
	defer span.End()

	b.logger.Debug("handling command", zap.String("message", name), zap.String("message_id", id))

	result, events, err := b.run(ctx, func(ctx context.Context, uow port.UnitOfWork) (any, error) {
		return handle(ctx, cmd, uow)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return result, events, nil
}

func (b *MessageBus) handleEvent(ctx context.Context, evt domain.Event) []domain.Event {
	var produced []domain.Event
	for _, route := range b.events[evt.MessageName()] {
		produced = append(produced, b.runEventHandler(ctx, route, evt)...)
	}
	return produced
}

func (b *MessageBus) runEventHandler(ctx context.Context, route EventRoute, evt domain.Event) []domain.Event {
	id := uuid.NewString()
	ctx, span := b.tracer.Start(ctx, "event "+route.Name, trace.WithAttributes(
		attribute.String("message.name", evt.MessageName()),
		attribute.String("message.id", id),
		attribute.String("handler", route.Name),
	))
	defer span.End()

	logger := b.logger.With(
		zap.String("message", evt.MessageName()),
		zap.String("message_id", id),
		zap.String("handler", route.Name),
	)
	logger.Debug("handling event")

	_, events, err := b.run(ctx, func(ctx context.Context, uow port.UnitOfWork) (any, error) {
		return nil, route.Handle(ctx, evt, uow)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("event handler failed", zap.Error(err))
		return nil
	}
	return events
}

// run executes fn in a fresh unit of work and commits it. A panic in fn is
// turned into an error.
func (b *MessageBus) run(ctx context.Context, fn func(ctx context.Context, uow port.UnitOfWork) (any, error)) (result any, events []domain.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			result, events, err = nil, nil, fmt.Errorf("panic recovered: %v", r)
		}
	}()

	uow, err := b.uows.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer uow.Rollback(ctx)

	result, err = fn(ctx, uow)
	if err != nil {
		return nil, nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return result, uow.CollectNewEvents(), nil
}
