package domain

import (
	"fmt"
	"slices"
)

// AllocateLine assigns line to the preferred batch able to hold it and returns
// that batch's reference. A line some batch already holds stays where it is.
func AllocateLine(line OrderLine, batches []*Batch) (string, error) {
	for _, b := range batches {
		if b.HasLine(line) {
			return b.Reference(), nil
		}
	}
	for _, b := range sortedBatches(batches) {
		if b.CanAllocate(line) {
			b.Allocate(line)
			return b.Reference(), nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrOutOfStock, line.SKU)
}

// DeallocateOrderLine removes the lines of orderID from the batch of sku holding them.
func DeallocateOrderLine(orderID, sku string, batches []*Batch) (*Batch, error) {
	for _, b := range batches {
		if b.SKU() == sku && b.HasOrder(orderID) {
			b.DeallocateOrder(orderID)
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: line with id %s has not been allocated", ErrUnallocatedLine, orderID)
}

// ChangeQuantity sets the purchased quantity of the batch named ref.
func ChangeQuantity(ref string, qty int, batches []*Batch) error {
	if qty < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	for _, b := range batches {
		if b.Reference() == ref {
			b.ChangePurchasedQuantity(qty)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// ValidateSKU fails with ErrInvalidSku when no batch stocks sku.
func ValidateSKU(sku string, batches []*Batch) error {
	for _, b := range batches {
		if b.SKU() == sku {
			return nil
		}
	}
	return fmt.Errorf("%w %s", ErrInvalidSku, sku)
}

// RecordOutOfStock records an OutOfStock event on the preferred batch of sku
// so the event leaves through that batch's unit of work. It reports whether
// a batch of that sku was found.
func RecordOutOfStock(sku string, batches []*Batch) bool {
	for _, b := range sortedBatches(batches) {
		if b.SKU() == sku {
			b.record(OutOfStock{SKU: sku})
			return true
		}
	}
	return false
}

func sortedBatches(batches []*Batch) []*Batch {
	sorted := slices.Clone(batches)
	slices.SortStableFunc(sorted, func(x, y *Batch) int {
		switch {
		case x.Less(y):
			return -1
		case y.Less(x):
			return 1
		default:
			return 0
		}
	})
	return sorted
}
