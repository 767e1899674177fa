package domain

// OrderLine is a request to allocate Qty units of SKU for one customer order.
// Two lines with identical fields are interchangeable.
type OrderLine struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}
