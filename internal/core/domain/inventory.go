package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Location addresses a single zone in the shop. It is a coordinate, not a
// reference to the zone itself.
type Location struct {
	Row  uint32 `json:"row" yaml:"row"`
	Rack uint32 `json:"rack" yaml:"rack"`
	Zone uint32 `json:"zone" yaml:"zone"`
}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d,%d)", l.Row, l.Rack, l.Zone)
}

// Item is the capability set a type needs to be stored on the shelves.
// Equal is value equality, not identity: two items with the same ID but a
// different quantity are not equal.
type Item[T any] interface {
	Name() string
	Quantity() uint32
	ID() uuid.UUID
	Price() decimal.Decimal
	Equal(other T) bool
	Clone() T
}

// Placement pairs an item with the location holding it.
type Placement[T any] struct {
	Location Location `json:"location"`
	Item     T        `json:"item"`
}
