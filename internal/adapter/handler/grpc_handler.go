package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

type GRPCHandler struct {
	bus    Bus
	view   port.AllocationsView
	logger *zap.Logger
}

func NewGRPCHandler(bus Bus, view port.AllocationsView, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{bus: bus, view: view, logger: logger}
}

func (h *GRPCHandler) AddBatch(ctx context.Context, req *AddBatchRequest) (*Empty, error) {
	if err := validateBatch(req.Ref, req.SKU); err != nil {
		return nil, h.status(err)
	}
	eta, err := parseETA(&req.ETA)
	if err != nil {
		return nil, h.status(err)
	}
	cmd := domain.CreateBatch{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty, ETA: eta}
	if _, err := h.bus.Handle(ctx, cmd); err != nil {
		return nil, h.status(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *AllocateRequest) (*AllocateResponse, error) {
	if err := validateLine(req.OrderID, req.SKU); err != nil {
		return nil, h.status(err)
	}
	results, err := h.bus.Handle(ctx, domain.Allocate{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty})
	if err != nil {
		return nil, h.status(err)
	}
	return &AllocateResponse{BatchRef: firstString(results)}, nil
}

func (h *GRPCHandler) Deallocate(ctx context.Context, req *DeallocateRequest) (*Empty, error) {
	if _, err := h.bus.Handle(ctx, domain.Deallocate{OrderID: req.OrderID, SKU: req.SKU}); err != nil {
		return nil, h.status(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) ChangeBatchQuantity(ctx context.Context, req *ChangeBatchQuantityRequest) (*Empty, error) {
	if _, err := h.bus.Handle(ctx, domain.ChangeBatchQuantity{Ref: req.Ref, Qty: req.Qty}); err != nil {
		return nil, h.status(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) Allocations(ctx context.Context, req *AllocationsRequest) (*AllocationsResponse, error) {
	views, err := h.view.Allocations(ctx, req.OrderID)
	if err != nil {
		return nil, h.status(err)
	}
	return &AllocationsResponse{Allocations: views}, nil
}

func (h *GRPCHandler) status(err error) error {
	_, code := classify(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
