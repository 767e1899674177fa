package domain

import (
	"slices"
	"strings"
	"time"
)

// Batch is a lot of stock for one SKU. Identity is the reference alone, so a
// batch may be mutated freely while it sits in a map keyed by Reference().
type Batch struct {
	reference   string
	sku         string
	eta         *time.Time
	purchased   int
	allocations map[OrderLine]struct{}

	events []Event // pending, drained by the unit of work
}

func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		reference:   ref,
		sku:         sku,
		eta:         truncateDate(eta),
		purchased:   qty,
		allocations: make(map[OrderLine]struct{}),
	}
}

// RestoreBatch rebuilds a batch from persisted state. No events are recorded.
func RestoreBatch(ref, sku string, qty int, eta *time.Time, lines []OrderLine) *Batch {
	b := NewBatch(ref, sku, qty, eta)
	for _, line := range lines {
		b.allocations[line] = struct{}{}
	}
	return b
}

func (b *Batch) Reference() string { return b.reference }
func (b *Batch) SKU() string       { return b.sku }

// ETA returns a copy of the expected arrival date, nil when the stock is
// already in the warehouse.
func (b *Batch) ETA() *time.Time {
	if b.eta == nil {
		return nil
	}
	eta := *b.eta
	return &eta
}

func (b *Batch) PurchasedQuantity() int { return b.purchased }

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.purchased - b.AllocatedQuantity()
}

// Equal compares identities.
func (b *Batch) Equal(other *Batch) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.reference == other.reference
}

// Less reports whether b should be preferred over other when allocating.
// Batches without an ETA are in stock and come first; dated batches follow
// in ascending ETA order.
func (b *Batch) Less(other *Batch) bool {
	switch {
	case b.eta == nil:
		return other.eta != nil
	case other.eta == nil:
		return false
	default:
		return b.eta.Before(*other.eta)
	}
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return line.SKU == b.sku && line.Qty <= b.AvailableQuantity()
}

// Allocate adds line to the batch. Allocating a line that is already held
// is a no-op and records nothing.
func (b *Batch) Allocate(line OrderLine) {
	if _, ok := b.allocations[line]; ok {
		return
	}
	b.allocations[line] = struct{}{}
	b.record(Allocated{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty, BatchRef: b.reference})
}

func (b *Batch) Deallocate(line OrderLine) {
	if _, ok := b.allocations[line]; !ok {
		return
	}
	delete(b.allocations, line)
	b.record(Deallocated{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty})
}

func (b *Batch) HasLine(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// HasOrder reports whether any allocated line belongs to orderID.
func (b *Batch) HasOrder(orderID string) bool {
	for line := range b.allocations {
		if line.OrderID == orderID {
			return true
		}
	}
	return false
}

// DeallocateOrder removes every line of orderID and returns them.
func (b *Batch) DeallocateOrder(orderID string) []OrderLine {
	var removed []OrderLine
	for _, line := range b.Allocations() {
		if line.OrderID == orderID {
			b.Deallocate(line)
			removed = append(removed, line)
		}
	}
	return removed
}

// Allocations returns the allocated lines sorted by order id, sku and qty.
func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		lines = append(lines, line)
	}
	slices.SortFunc(lines, compareLines)
	return lines
}

// ChangePurchasedQuantity sets the purchased quantity and sheds allocations,
// largest first, until nothing is over-allocated. Every shed line records an
// AllocationRequired event.
func (b *Batch) ChangePurchasedQuantity(qty int) {
	b.purchased = qty
	if b.AvailableQuantity() >= 0 {
		return
	}

	lines := b.Allocations()
	slices.SortStableFunc(lines, func(x, y OrderLine) int {
		return y.Qty - x.Qty
	})
	for _, line := range lines {
		if b.AvailableQuantity() >= 0 {
			break
		}
		delete(b.allocations, line)
		b.record(AllocationRequired{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty})
	}
}

// PullEvents returns the pending events in the order they were recorded and
// clears the queue. Units of work are the only callers.
func (b *Batch) PullEvents() []Event {
	events := b.events
	b.events = nil
	return events
}

func (b *Batch) record(evt Event) {
	b.events = append(b.events, evt)
}

func compareLines(x, y OrderLine) int {
	if c := strings.Compare(x.OrderID, y.OrderID); c != 0 {
		return c
	}
	if c := strings.Compare(x.SKU, y.SKU); c != 0 {
		return c
	}
	return x.Qty - y.Qty
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
