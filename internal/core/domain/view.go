package domain

// AllocationView is one row of the allocations read model: which batch
// fulfils a given sku of an order.
type AllocationView struct {
	SKU      string `json:"sku"`
	BatchRef string `json:"batchref"`
}
