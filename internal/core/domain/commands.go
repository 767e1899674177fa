package domain

import "time"

// Command is an imperative request handled by exactly one handler.
type Command interface {
	Message
	isCommand()
}

type CreateBatch struct {
	Ref string
	SKU string
	Qty int
	ETA *time.Time
}

type Allocate struct {
	OrderID string
	SKU     string
	Qty     int
}

type Deallocate struct {
	OrderID string
	SKU     string
}

type ChangeBatchQuantity struct {
	Ref string
	Qty int
}

func (CreateBatch) MessageName() string         { return "CreateBatch" }
func (Allocate) MessageName() string            { return "Allocate" }
func (Deallocate) MessageName() string          { return "Deallocate" }
func (ChangeBatchQuantity) MessageName() string { return "ChangeBatchQuantity" }

func (CreateBatch) isCommand()         {}
func (Allocate) isCommand()            {}
func (Deallocate) isCommand()          {}
func (ChangeBatchQuantity) isCommand() {}

// Commands lists one zero value of every command variant. The message bus
// uses it to check that each variant has exactly one handler.
func Commands() []Command {
	return []Command{
		CreateBatch{},
		Allocate{},
		Deallocate{},
		ChangeBatchQuantity{},
	}
}

// Line returns the order line requested by the command.
func (c Allocate) Line() OrderLine {
	return OrderLine{OrderID: c.OrderID, SKU: c.SKU, Qty: c.Qty}
}
