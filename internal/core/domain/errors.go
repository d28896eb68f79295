package domain

import "errors"

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrMoveFailed       = errors.New("move failed")
	ErrSlotExists       = errors.New("slot already exists")
	ErrStaleIndex       = errors.New("name index out of sync with shelves")
	ErrNotEnoughCopies  = errors.New("not enough copies")
	ErrInvalidQuantity  = errors.New("invalid quantity")
)
