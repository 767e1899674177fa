package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/port"
)

const (
	sku           = "STRESS-LAMP"
	batchQty      = 20
	batchCount    = 2
	totalRequests = 100
	lineQty       = 1
)

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "allocation-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// Initialize SQLite
	db, err := storage.Open(ctx, storage.DialectSQLite, filepath.Join(dir, "stress.db"))
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	schema, err := storage.StartSchema(ctx, db, storage.DialectSQLite)
	if err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	store := storage.NewSQLStore(db, schema)

	bus, err := (&service.Handlers{Logger: zap.NewNop()}).NewBus(store)
	if err != nil {
		log.Fatalf("failed to build bus: %v", err)
	}

	for i := 0; i < batchCount; i++ {
		cmd := domain.CreateBatch{Ref: fmt.Sprintf("batch-%d", i), SKU: sku, Qty: batchQty}
		if _, err := bus.Handle(ctx, cmd); err != nil {
			log.Fatalf("failed to create batch: %v", err)
		}
	}

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var conflictCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cmd := domain.Allocate{OrderID: "order-" + uuid.NewString(), SKU: sku, Qty: lineQty}
			_, err := bus.Handle(ctx, cmd)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			case errors.Is(err, port.ErrOptimisticLock):
				conflictCount.Add(1)
			default:
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	stock := batchQty * batchCount
	success := int(successCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Stock:      %d\n", stock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Allocated:        %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStockCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == stock {
		fmt.Printf("PASS: Exactly %d lines allocated\n", stock)
	} else {
		fmt.Printf("FAIL: Expected %d allocations, got %d\n", stock, success)
	}

	// Verify no batch is over-allocated
	uow, err := store.Begin(ctx)
	if err != nil {
		log.Fatalf("failed to begin: %v", err)
	}
	defer uow.Rollback(ctx)

	batches, err := uow.Batches().List(ctx)
	if err != nil {
		log.Fatalf("failed to list batches: %v", err)
	}
	allocated := 0
	for _, b := range batches {
		allocated += b.AllocatedQuantity()
		if b.AvailableQuantity() < 0 {
			fmt.Printf("FAIL: %s over-allocated by %d\n", b.Reference(), -b.AvailableQuantity())
		}
	}
	if allocated == success*lineQty {
		fmt.Println("PASS: Stored allocations match successful requests")
	} else {
		fmt.Printf("FAIL: Expected %d allocated units, got %d\n", success*lineQty, allocated)
	}
}
