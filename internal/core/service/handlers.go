package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// Channels events are published on.
const (
	ChannelAllocated   = "line_allocated"
	ChannelDeallocated = "line_deallocated"
	ChannelOutOfStock  = "out_of_stock"
)

// Handlers holds the collaborators of the message handlers. Publisher,
// ReadModel and Notifier are optional; the routes that need them are only
// registered when they are set.
type Handlers struct {
	Publisher port.EventPublisher
	ReadModel port.AllocationsReadModel
	Notifier  port.Notifier
	Logger    *zap.Logger
}

// NewBus wires the handlers onto a message bus over uows.
func (h *Handlers) NewBus(uows port.UnitOfWorkFactory) (*MessageBus, error) {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	commands, events := h.Routes()
	return NewMessageBus(uows, h.Logger, commands, events)
}

// Routes returns the command and event routes in registration order.
func (h *Handlers) Routes() ([]CommandRoute, []EventRoute) {
	commands := []CommandRoute{
		CommandHandler(h.AddBatch),
		CommandHandler(h.Allocate),
		CommandHandler(h.Deallocate),
		CommandHandler(h.ChangeBatchQuantity),
	}

	var events []EventRoute
	if h.Publisher != nil {
		events = append(events, EventHandler("publish_allocated", h.PublishAllocated))
	}
	if h.ReadModel != nil {
		events = append(events, EventHandler("add_allocation_to_read_model", h.AddAllocationToReadModel))
	}
	if h.Publisher != nil {
		events = append(events, EventHandler("publish_deallocated", h.PublishDeallocated))
	}
	if h.ReadModel != nil {
		events = append(events,
			EventHandler("remove_deallocated_from_read_model", h.RemoveDeallocatedFromReadModel),
			EventHandler("remove_reallocated_from_read_model", h.RemoveReallocatedFromReadModel),
		)
	}
	events = append(events, EventHandler("reallocate", h.Reallocate))
	if h.Notifier != nil {
		events = append(events, EventHandler("notify_out_of_stock", h.NotifyOutOfStock))
	}
	if h.Publisher != nil {
		events = append(events, EventHandler("publish_out_of_stock", h.PublishOutOfStock))
	}
	return commands, events
}

func (h *Handlers) AddBatch(ctx context.Context, cmd domain.CreateBatch, uow port.UnitOfWork) (any, error) {
	if cmd.Qty < 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, cmd.Qty)
	}
	return nil, uow.Batches().Add(ctx, domain.NewBatch(cmd.Ref, cmd.SKU, cmd.Qty, cmd.ETA))
}

// Allocate returns the reference of the batch the line went to.
func (h *Handlers) Allocate(ctx context.Context, cmd domain.Allocate, uow port.UnitOfWork) (any, error) {
	if cmd.Qty <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, cmd.Qty)
	}
	batches, err := uow.Batches().List(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateSKU(cmd.SKU, batches); err != nil {
		return nil, err
	}
	return domain.AllocateLine(cmd.Line(), batches)
}

func (h *Handlers) Deallocate(ctx context.Context, cmd domain.Deallocate, uow port.UnitOfWork) (any, error) {
	batches, err := uow.Batches().List(ctx)
	if err != nil {
		return nil, err
	}
	_, err = domain.DeallocateOrderLine(cmd.OrderID, cmd.SKU, batches)
	return nil, err
}

func (h *Handlers) ChangeBatchQuantity(ctx context.Context, cmd domain.ChangeBatchQuantity, uow port.UnitOfWork) (any, error) {
	batches, err := uow.Batches().List(ctx)
	if err != nil {
		return nil, err
	}
	return nil, domain.ChangeQuantity(cmd.Ref, cmd.Qty, batches)
}

// Reallocate finds a new home for a line shed by its batch. When no batch
// can take it, OutOfStock is recorded instead of failing.
func (h *Handlers) Reallocate(ctx context.Context, evt domain.AllocationRequired, uow port.UnitOfWork) error {
	batches, err := uow.Batches().List(ctx)
	if err != nil {
		return err
	}
	_, err = domain.AllocateLine(evt.Line(), batches)
	if errors.Is(err, domain.ErrOutOfStock) {
		domain.RecordOutOfStock(evt.SKU, batches)
		return nil
	}
	return err
}

func (h *Handlers) PublishAllocated(ctx context.Context, evt domain.Allocated, _ port.UnitOfWork) error {
	return h.Publisher.Publish(ctx, ChannelAllocated, evt)
}

func (h *Handlers) PublishDeallocated(ctx context.Context, evt domain.Deallocated, _ port.UnitOfWork) error {
	return h.Publisher.Publish(ctx, ChannelDeallocated, evt)
}

func (h *Handlers) PublishOutOfStock(ctx context.Context, evt domain.OutOfStock, _ port.UnitOfWork) error {
	return h.Publisher.Publish(ctx, ChannelOutOfStock, evt)
}

func (h *Handlers) NotifyOutOfStock(ctx context.Context, evt domain.OutOfStock, _ port.UnitOfWork) error {
	return h.Notifier.NotifyOutOfStock(ctx, evt.SKU)
}

func (h *Handlers) AddAllocationToReadModel(ctx context.Context, evt domain.Allocated, _ port.UnitOfWork) error {
	return h.ReadModel.AddAllocation(ctx, evt.OrderID, evt.SKU, evt.BatchRef)
}

func (h *Handlers) RemoveDeallocatedFromReadModel(ctx context.Context, evt domain.Deallocated, _ port.UnitOfWork) error {
	return h.ReadModel.RemoveAllocation(ctx, evt.OrderID, evt.SKU)
}

func (h *Handlers) RemoveReallocatedFromReadModel(ctx context.Context, evt domain.AllocationRequired, _ port.UnitOfWork) error {
	return h.ReadModel.RemoveAllocation(ctx, evt.OrderID, evt.SKU)
}
