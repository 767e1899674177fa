package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

func TestMemoryStore_Conformance(t *testing.T) {
	runUnitOfWorkConformance(t, func(t *testing.T) port.UnitOfWorkFactory {
		return NewMemoryStore()
	})
}

func TestMemoryStore_Seeded(t *testing.T) {
	store := NewMemoryStore(domain.NewBatch("b1", "SKU", 10, nil))
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer uow.Rollback(ctx)

	b, err := uow.Batches().Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.AvailableQuantity() != 10 {
		t.Errorf("expected available 10, got %d", b.AvailableQuantity())
	}
}

func TestMemoryStore_OptimisticLock(t *testing.T) {
	store := NewMemoryStore(domain.NewBatch("b1", "SKU", 10, nil))
	ctx := context.Background()

	first, _ := store.Begin(ctx)
	defer first.Rollback(ctx)
	second, _ := store.Begin(ctx)
	defer second.Rollback(ctx)

	a, _ := first.Batches().Get(ctx, "b1")
	b, _ := second.Batches().Get(ctx, "b1")
	a.Allocate(domain.OrderLine{OrderID: "o1", SKU: "SKU", Qty: 8})
	b.Allocate(domain.OrderLine{OrderID: "o2", SKU: "SKU", Qty: 8})

	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	err := second.Commit(ctx)
	if !errors.Is(err, port.ErrOptimisticLock) {
		t.Fatalf("expected ErrOptimisticLock, got: %v", err)
	}
	if events := second.CollectNewEvents(); len(events) != 0 {
		t.Errorf("expected no events from failed commit, got %v", events)
	}
	if events := first.CollectNewEvents(); len(events) != 1 {
		t.Errorf("expected 1 event from first commit, got %v", events)
	}

	check, _ := store.Begin(ctx)
	defer check.Rollback(ctx)
	got, _ := check.Batches().Get(ctx, "b1")
	if got.AvailableQuantity() != 2 {
		t.Errorf("expected available 2, got %d", got.AvailableQuantity())
	}
}

func TestMemoryStore_ConcurrentAddSameReference(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _ := store.Begin(ctx)
	second, _ := store.Begin(ctx)
	first.Batches().Add(ctx, domain.NewBatch("b1", "SKU", 10, nil))
	second.Batches().Add(ctx, domain.NewBatch("b1", "SKU", 20, nil))

	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	if err := second.Commit(ctx); !errors.Is(err, domain.ErrDuplicateBatch) {
		t.Errorf("expected ErrDuplicateBatch, got: %v", err)
	}
}

func TestMemoryStore_UnchangedBatchesDoNotConflict(t *testing.T) {
	store := NewMemoryStore(domain.NewBatch("b1", "SKU", 10, nil), domain.NewBatch("b2", "SKU", 10, nil))
	ctx := context.Background()

	reader, _ := store.Begin(ctx)
	writer, _ := store.Begin(ctx)

	reader.Batches().List(ctx)
	w, _ := writer.Batches().Get(ctx, "b2")
	w.Allocate(domain.OrderLine{OrderID: "o1", SKU: "SKU", Qty: 1})
	if err := writer.Commit(ctx); err != nil {
		t.Fatalf("writer commit failed: %v", err)
	}

	r, _ := reader.Batches().Get(ctx, "b1")
	r.Allocate(domain.OrderLine{OrderID: "o2", SKU: "SKU", Qty: 1})
	if err := reader.Commit(ctx); err != nil {
		t.Errorf("expected commit touching only b1 to succeed, got: %v", err)
	}
}
