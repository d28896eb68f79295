package store

import (
	"fmt"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

// Zone is a single storage cell. It holds at most one item.
type Zone[T domain.Item[T]] struct {
	item     T
	occupied bool
}

// Item returns a copy of the held item.
func (z *Zone[T]) Item() (T, bool) {
	if !z.occupied {
		var zero T
		return zero, false
	}
	return z.item.Clone(), true
}

// put stores item, returning the previous occupant if there was one.
func (z *Zone[T]) put(item T) (prev T, replaced bool) {
	prev, replaced = z.item, z.occupied
	z.item, z.occupied = item, true
	return prev, replaced
}

// take empties the zone and returns what it held.
func (z *Zone[T]) take() (T, bool) {
	item, ok := z.item, z.occupied
	var zero T
	z.item, z.occupied = zero, false
	return item, ok
}

func (z *Zone[T]) Empty() bool { return !z.occupied }

// Rack is a shelf of zones. Its capacity bounds the number of zone slots,
// not the items placed in them.
type Rack[T domain.Item[T]] struct {
	zones       map[uint32]*Zone[T]
	maxCapacity uint32
}

func NewRack[T domain.Item[T]](maxCapacity uint32) *Rack[T] {
	return &Rack[T]{
		zones:       make(map[uint32]*Zone[T]),
		maxCapacity: maxCapacity,
	}
}

// AddZone opens a new empty zone slot.
func (r *Rack[T]) AddZone(id uint32) error {
	if _, ok := r.zones[id]; ok {
		return fmt.Errorf("zone %d: %w", id, domain.ErrSlotExists)
	}
	if uint32(len(r.zones)) >= r.maxCapacity {
		return fmt.Errorf("rack holds %d/%d zones: %w", len(r.zones), r.maxCapacity, domain.ErrCapacityExceeded)
	}
	r.zones[id] = &Zone[T]{}
	return nil
}

func (r *Rack[T]) Zone(id uint32) (*Zone[T], bool) {
	z, ok := r.zones[id]
	return z, ok
}

func (r *Rack[T]) Len() int { return len(r.zones) }

func (r *Rack[T]) Capacity() uint32 { return r.maxCapacity }

// ZoneIDs returns the zone ids in ascending order.
func (r *Rack[T]) ZoneIDs() []uint32 { return sortedKeys(r.zones) }

// Row is an aisle of racks bounded by its capacity.
type Row[T domain.Item[T]] struct {
	racks       map[uint32]*Rack[T]
	maxCapacity uint32
}

func NewRow[T domain.Item[T]](maxCapacity uint32) *Row[T] {
	return &Row[T]{
		racks:       make(map[uint32]*Rack[T]),
		maxCapacity: maxCapacity,
	}
}

// AddRack opens a new empty rack with its own zone capacity.
func (r *Row[T]) AddRack(id, maxCapacity uint32) error {
	if _, ok := r.racks[id]; ok {
		return fmt.Errorf("rack %d: %w", id, domain.ErrSlotExists)
	}
	if uint32(len(r.racks)) >= r.maxCapacity {
		return fmt.Errorf("row holds %d/%d racks: %w", len(r.racks), r.maxCapacity, domain.ErrCapacityExceeded)
	}
	r.racks[id] = NewRack[T](maxCapacity)
	return nil
}

func (r *Row[T]) Rack(id uint32) (*Rack[T], bool) {
	rk, ok := r.racks[id]
	return rk, ok
}

func (r *Row[T]) Len() int { return len(r.racks) }

func (r *Row[T]) Capacity() uint32 { return r.maxCapacity }

func (r *Row[T]) RackIDs() []uint32 { return sortedKeys(r.racks) }
