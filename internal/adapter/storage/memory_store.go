package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

type memoryRow struct {
	sku     string
	eta     *time.Time
	qty     int
	lines   []domain.OrderLine
	version int
}

// MemoryStore keeps committed batches in process memory. Every unit of work
// operates on private copies that are written back on Commit, so rollback
// and optimistic locking behave as they do against a database.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]memoryRow
}

func NewMemoryStore(batches ...*domain.Batch) *MemoryStore {
	s := &MemoryStore{rows: make(map[string]memoryRow)}
	for _, b := range batches {
		s.rows[b.Reference()] = rowOf(b, 0)
	}
	return s
}

func (s *MemoryStore) Begin(ctx context.Context) (port.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	return &memoryUnitOfWork{
		store: s,
		repo:  &memoryRepository{store: s, seen: newIdentityMap()},
	}, nil
}

func (s *MemoryStore) load(ref string) (*domain.Batch, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[ref]
	if !ok {
		return nil, 0, false
	}
	return domain.RestoreBatch(ref, row.sku, row.qty, row.eta, row.lines), row.version, true
}

func (s *MemoryStore) refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]string, 0, len(s.rows))
	for ref := range s.rows {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

func (s *MemoryStore) apply(changes []*tracked) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range changes {
		row, exists := s.rows[t.batch.Reference()]
		if t.isNew && exists {
			return fmt.Errorf("insert batch %s: %w", t.batch.Reference(), domain.ErrDuplicateBatch)
		}
		if !t.isNew && (!exists || row.version != t.version) {
			return fmt.Errorf("update batch %s: %w", t.batch.Reference(), port.ErrOptimisticLock)
		}
	}

	for _, t := range changes {
		version := 0
		if !t.isNew {
			version = t.version + 1
		}
		s.rows[t.batch.Reference()] = rowOf(t.batch, version)
	}
	return nil
}

func rowOf(b *domain.Batch, version int) memoryRow {
	return memoryRow{
		sku:     b.SKU(),
		eta:     b.ETA(),
		qty:     b.PurchasedQuantity(),
		lines:   b.Allocations(),
		version: version,
	}
}

type memoryRepository struct {
	store *MemoryStore
	seen  *identityMap
}

func (r *memoryRepository) Add(ctx context.Context, batch *domain.Batch) error {
	if _, ok := r.seen.get(batch.Reference()); ok {
		return fmt.Errorf("add batch %s: %w", batch.Reference(), domain.ErrDuplicateBatch)
	}
	if _, _, ok := r.store.load(batch.Reference()); ok {
		return fmt.Errorf("add batch %s: %w", batch.Reference(), domain.ErrDuplicateBatch)
	}
	r.seen.track(batch, 0, true)
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, reference string) (*domain.Batch, error) {
	if t, ok := r.seen.get(reference); ok {
		return t.batch, nil
	}
	batch, version, ok := r.store.load(reference)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, reference)
	}
	return r.seen.track(batch, version, false), nil
}

func (r *memoryRepository) List(ctx context.Context) ([]*domain.Batch, error) {
	refs := r.store.refs()
	for _, t := range r.seen.all() {
		if t.isNew {
			refs = append(refs, t.batch.Reference())
		}
	}
	slices.Sort(refs)
	refs = slices.Compact(refs)

	batches := make([]*domain.Batch, 0, len(refs))
	for _, ref := range refs {
		b, err := r.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

type memoryUnitOfWork struct {
	store     *MemoryStore
	repo      *memoryRepository
	done      bool
	committed bool
}

func (u *memoryUnitOfWork) Batches() port.BatchRepository {
	return u.repo
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("commit: unit of work already closed")
	}
	u.done = true
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	var changes []*tracked
	for _, t := range u.repo.seen.all() {
		if t.dirty() {
			changes = append(changes, t)
		}
	}
	if err := u.store.apply(changes); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.committed = true
	return nil
}

func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	u.done = true
	return nil
}

func (u *memoryUnitOfWork) CollectNewEvents() []domain.Event {
	events := u.repo.seen.collectEvents()
	if !u.committed {
		return nil
	}
	return events
}
