package domain

// Message is anything the message bus can dispatch.
type Message interface {
	MessageName() string
}

// Event is a fact that already happened. Any number of handlers may react to it.
type Event interface {
	Message
	isEvent()
}

type Allocated struct {
	OrderID  string `json:"orderid"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

type Deallocated struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type OutOfStock struct {
	SKU string `json:"sku"`
}

// AllocationRequired is raised for every line a batch sheds when its
// purchased quantity drops below what is already allocated.
type AllocationRequired struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (Allocated) MessageName() string          { return "Allocated" }
func (Deallocated) MessageName() string        { return "Deallocated" }
func (OutOfStock) MessageName() string         { return "OutOfStock" }
func (AllocationRequired) MessageName() string { return "AllocationRequired" }

func (Allocated) isEvent()          {}
func (Deallocated) isEvent()        {}
func (OutOfStock) isEvent()         {}
func (AllocationRequired) isEvent() {}

// Line returns the order line the event is about.
func (e AllocationRequired) Line() OrderLine {
	return OrderLine{OrderID: e.OrderID, SKU: e.SKU, Qty: e.Qty}
}
