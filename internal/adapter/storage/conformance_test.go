package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// runUnitOfWorkConformance checks the observable behaviour every
// UnitOfWorkFactory must share, whatever it persists to.
func runUnitOfWorkConformance(t *testing.T, newStore func(t *testing.T) port.UnitOfWorkFactory) {
	ctx := context.Background()
	tomorrow := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	insert := func(t *testing.T, store port.UnitOfWorkFactory, batches ...*domain.Batch) {
		t.Helper()
		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)
		for _, b := range batches {
			require.NoError(t, uow.Batches().Add(ctx, b))
		}
		require.NoError(t, uow.Commit(ctx))
	}

	load := func(t *testing.T, store port.UnitOfWorkFactory, ref string) *domain.Batch {
		t.Helper()
		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)
		b, err := uow.Batches().Get(ctx, ref)
		require.NoError(t, err)
		return b
	}

	t.Run("commit persists added batch", func(t *testing.T) {
		store := newStore(t)
		insert(t, store,
			domain.NewBatch("batch1", "HIPSTER-WORKBENCH", 100, &tomorrow),
			domain.NewBatch("batch2", "HIPSTER-WORKBENCH", 50, nil),
		)

		got := load(t, store, "batch1")
		assert.Equal(t, "HIPSTER-WORKBENCH", got.SKU())
		assert.Equal(t, 100, got.PurchasedQuantity())
		require.NotNil(t, got.ETA())
		assert.True(t, got.ETA().Equal(tomorrow))

		assert.Nil(t, load(t, store, "batch2").ETA())
	})

	t.Run("get unknown reference", func(t *testing.T) {
		store := newStore(t)
		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)

		_, err = uow.Batches().Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rolls back uncommitted work by default", func(t *testing.T) {
		store := newStore(t)
		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, uow.Batches().Add(ctx, domain.NewBatch("batch1", "MEDIUM-PLINTH", 100, nil)))
		require.NoError(t, uow.Rollback(ctx))

		check, err := store.Begin(ctx)
		require.NoError(t, err)
		defer check.Rollback(ctx)
		_, err = check.Batches().Get(ctx, "batch1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rolls back on explicit rollback after changes", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("batch1", "LARGE-FORK", 100, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		b, err := uow.Batches().Get(ctx, "batch1")
		require.NoError(t, err)
		b.Allocate(domain.OrderLine{OrderID: "o1", SKU: "LARGE-FORK", Qty: 10})
		require.NoError(t, uow.Rollback(ctx))

		assert.Equal(t, 100, load(t, store, "batch1").AvailableQuantity())
	})

	t.Run("commit persists allocations and quantity changes", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("batch1", "GENERIC-SOFA", 100, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		b, err := uow.Batches().Get(ctx, "batch1")
		require.NoError(t, err)
		b.Allocate(domain.OrderLine{OrderID: "o1", SKU: "GENERIC-SOFA", Qty: 10})
		b.Allocate(domain.OrderLine{OrderID: "o2", SKU: "GENERIC-SOFA", Qty: 5})
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Rollback(ctx), "rollback after commit is a no-op")

		got := load(t, store, "batch1")
		assert.Equal(t, 85, got.AvailableQuantity())
		assert.Equal(t, []domain.OrderLine{
			{OrderID: "o1", SKU: "GENERIC-SOFA", Qty: 10},
			{OrderID: "o2", SKU: "GENERIC-SOFA", Qty: 5},
		}, got.Allocations())

		uow, err = store.Begin(ctx)
		require.NoError(t, err)
		b, err = uow.Batches().Get(ctx, "batch1")
		require.NoError(t, err)
		b.DeallocateOrder("o1")
		b.ChangePurchasedQuantity(40)
		require.NoError(t, uow.Commit(ctx))

		got = load(t, store, "batch1")
		assert.Equal(t, 40, got.PurchasedQuantity())
		assert.Equal(t, 35, got.AvailableQuantity())
	})

	t.Run("identity map returns one instance per reference", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("batch1", "SKU", 10, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)

		first, err := uow.Batches().Get(ctx, "batch1")
		require.NoError(t, err)
		listed, err := uow.Batches().List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Same(t, first, listed[0])

		again, err := uow.Batches().Get(ctx, "batch1")
		require.NoError(t, err)
		assert.Same(t, first, again)
	})

	t.Run("list includes staged batches sorted by reference", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("b-2", "SKU", 10, nil), domain.NewBatch("b-3", "SKU", 10, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)
		require.NoError(t, uow.Batches().Add(ctx, domain.NewBatch("b-1", "SKU", 10, nil)))

		listed, err := uow.Batches().List(ctx)
		require.NoError(t, err)
		var refs []string
		for _, b := range listed {
			refs = append(refs, b.Reference())
		}
		assert.Equal(t, []string{"b-1", "b-2", "b-3"}, refs)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("batch1", "SKU", 10, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)

		err = uow.Batches().Add(ctx, domain.NewBatch("batch1", "SKU", 10, nil))
		assert.ErrorIs(t, err, domain.ErrDuplicateBatch)

		require.NoError(t, uow.Batches().Add(ctx, domain.NewBatch("batch2", "SKU", 10, nil)))
		err = uow.Batches().Add(ctx, domain.NewBatch("batch2", "SKU", 10, nil))
		assert.ErrorIs(t, err, domain.ErrDuplicateBatch)
	})

	t.Run("collects events of touched batches after commit", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("b1", "SKU-A", 10, nil), domain.NewBatch("b2", "SKU-B", 10, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)

		b2, err := uow.Batches().Get(ctx, "b2")
		require.NoError(t, err)
		b1, err := uow.Batches().Get(ctx, "b1")
		require.NoError(t, err)
		b1.Allocate(domain.OrderLine{OrderID: "o1", SKU: "SKU-A", Qty: 1})
		b2.Allocate(domain.OrderLine{OrderID: "o2", SKU: "SKU-B", Qty: 2})
		b2.Allocate(domain.OrderLine{OrderID: "o3", SKU: "SKU-B", Qty: 3})
		require.NoError(t, uow.Commit(ctx))

		assert.Equal(t, []domain.Event{
			domain.Allocated{OrderID: "o2", SKU: "SKU-B", Qty: 2, BatchRef: "b2"},
			domain.Allocated{OrderID: "o3", SKU: "SKU-B", Qty: 3, BatchRef: "b2"},
			domain.Allocated{OrderID: "o1", SKU: "SKU-A", Qty: 1, BatchRef: "b1"},
		}, uow.CollectNewEvents())
		assert.Empty(t, uow.CollectNewEvents())
	})

	t.Run("no events after failed commit", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, domain.NewBatch("b1", "SKU", 10, nil))

		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)
		b, err := uow.Batches().Get(ctx, "b1")
		require.NoError(t, err)
		b.Allocate(domain.OrderLine{OrderID: "o1", SKU: "SKU", Qty: 4})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		require.Error(t, uow.Commit(cancelled))

		assert.Empty(t, uow.CollectNewEvents())
		assert.Equal(t, 10, load(t, store, "b1").AvailableQuantity())
	})

	t.Run("nothing to commit produces no events", func(t *testing.T) {
		store := newStore(t)
		uow, err := store.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx)
		require.NoError(t, uow.Commit(ctx))
		assert.Empty(t, uow.CollectNewEvents())
	})
}
