package port

import (
	"context"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

type AllocationsView interface {
	// Allocations lists where each sku of the order is allocated, sorted by sku
	Allocations(ctx context.Context, orderID string) ([]domain.AllocationView, error)
}

// AllocationsReadModel is a denormalised AllocationsView kept up to date by event handlers.
type AllocationsReadModel interface {
	AllocationsView

	AddAllocation(ctx context.Context, orderID, sku, batchRef string) error
	RemoveAllocation(ctx context.Context, orderID, sku string) error
}
