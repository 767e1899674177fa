package storage

import (
	"slices"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

// tracked is a batch loaded or added through a unit of work.
type tracked struct {
	batch   *domain.Batch
	version int
	isNew   bool
	loaded  batchState
}

func (t *tracked) dirty() bool {
	return t.isNew || !t.loaded.equal(stateOf(t.batch))
}

type batchState struct {
	qty   int
	lines []domain.OrderLine
}

func stateOf(b *domain.Batch) batchState {
	return batchState{qty: b.PurchasedQuantity(), lines: b.Allocations()}
}

func (s batchState) equal(other batchState) bool {
	return s.qty == other.qty && slices.Equal(s.lines, other.lines)
}

// identityMap hands out one instance per reference within a scope and
// remembers the order in which batches were first seen.
type identityMap struct {
	order   []string
	entries map[string]*tracked
}

func newIdentityMap() *identityMap {
	return &identityMap{entries: make(map[string]*tracked)}
}

func (m *identityMap) get(ref string) (*tracked, bool) {
	t, ok := m.entries[ref]
	return t, ok
}

func (m *identityMap) track(b *domain.Batch, version int, isNew bool) *domain.Batch {
	if t, ok := m.entries[b.Reference()]; ok {
		return t.batch
	}
	m.entries[b.Reference()] = &tracked{batch: b, version: version, isNew: isNew, loaded: stateOf(b)}
	m.order = append(m.order, b.Reference())
	return b
}

func (m *identityMap) all() []*tracked {
	out := make([]*tracked, 0, len(m.order))
	for _, ref := range m.order {
		out = append(out, m.entries[ref])
	}
	return out
}

func (m *identityMap) collectEvents() []domain.Event {
	var events []domain.Event
	for _, t := range m.all() {
		events = append(events, t.batch.PullEvents()...)
	}
	return events
}
