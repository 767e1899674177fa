package service

import (
	"context"
	"slices"
	"strings"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// RepositoryView answers allocation queries straight from the batches, so it
// always agrees with the last committed write.
type RepositoryView struct {
	uows port.UnitOfWorkFactory
}

func NewRepositoryView(uows port.UnitOfWorkFactory) *RepositoryView {
	return &RepositoryView{uows: uows}
}

func (v *RepositoryView) Allocations(ctx context.Context, orderID string) ([]domain.AllocationView, error) {
	uow, err := v.uows.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	batches, err := uow.Batches().List(ctx)
	if err != nil {
		return nil, err
	}

	views := []domain.AllocationView{}
	for _, b := range batches {
		for _, line := range b.Allocations() {
			if line.OrderID == orderID {
				views = append(views, domain.AllocationView{SKU: line.SKU, BatchRef: b.Reference()})
			}
		}
	}
	slices.SortFunc(views, func(a, b domain.AllocationView) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.BatchRef, b.BatchRef)
	})
	return slices.Compact(views), nil
}
