package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

func TestRepositoryView_Allocations(t *testing.T) {
	app := newTestApp(t)
	today := time.Now()

	app.handle(t, domain.CreateBatch{Ref: "sku1batch", SKU: "sku1", Qty: 50})
	app.handle(t, domain.CreateBatch{Ref: "sku2batch", SKU: "sku2", Qty: 50, ETA: &today})
	app.handle(t, domain.Allocate{OrderID: "order1", SKU: "sku1", Qty: 20})
	app.handle(t, domain.Allocate{OrderID: "order1", SKU: "sku2", Qty: 20})

	// noise
	app.handle(t, domain.CreateBatch{Ref: "sku1batch-later", SKU: "sku1", Qty: 50, ETA: &today})
	app.handle(t, domain.Allocate{OrderID: "otherorder", SKU: "sku1", Qty: 30})
	app.handle(t, domain.Allocate{OrderID: "otherorder", SKU: "sku2", Qty: 10})

	views, err := NewRepositoryView(app.store).Allocations(context.Background(), "order1")
	if err != nil {
		t.Fatalf("Allocations failed: %v", err)
	}
	want := []domain.AllocationView{
		{SKU: "sku1", BatchRef: "sku1batch"},
		{SKU: "sku2", BatchRef: "sku2batch"},
	}
	if !reflect.DeepEqual(views, want) {
		t.Errorf("expected %v, got %v", want, views)
	}
}

func TestRepositoryView_AfterDeallocate(t *testing.T) {
	app := newTestApp(t)
	app.handle(t, domain.CreateBatch{Ref: "b1", SKU: "sku1", Qty: 50})
	app.handle(t, domain.Allocate{OrderID: "order1", SKU: "sku1", Qty: 20})
	app.handle(t, domain.Deallocate{OrderID: "order1", SKU: "sku1"})

	views, err := NewRepositoryView(app.store).Allocations(context.Background(), "order1")
	if err != nil {
		t.Fatalf("Allocations failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("expected no allocations, got %v", views)
	}
}

func TestRepositoryView_UnknownOrder(t *testing.T) {
	app := newTestApp(t)

	views, err := NewRepositoryView(app.store).Allocations(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Allocations failed: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", views)
	}
}
