package domain

import "errors"

var (
	ErrOutOfStock      = errors.New("out of stock")
	ErrInvalidSku      = errors.New("invalid sku")
	ErrUnallocatedLine = errors.New("unallocated line")
	ErrNotFound        = errors.New("batch not found")
	ErrDuplicateBatch  = errors.New("batch already exists")
	ErrInvalidQuantity = errors.New("invalid quantity")
)
