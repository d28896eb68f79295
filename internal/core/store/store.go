package store

import (
	"fmt"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

// Store owns every row, rack, zone and item of a shop together with the
// name index derived from them.
//
// A Store is not safe for concurrent use. Callers sharing one across
// goroutines must hold a single lock around every call, MoveItem included.
type Store[T domain.Item[T]] struct {
	rows    map[uint32]*Row[T]
	index   *NameIndex
	maxRows uint32
}

type Option[T domain.Item[T]] func(*Store[T])

// WithMaxRows bounds the number of rows. Zero means unbounded.
func WithMaxRows[T domain.Item[T]](n uint32) Option[T] {
	return func(s *Store[T]) {
		s.maxRows = n
	}
}

func New[T domain.Item[T]](opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		rows:  make(map[uint32]*Row[T]),
		index: NewNameIndex(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AddRow opens a new empty row able to hold capacity racks.
func (s *Store[T]) AddRow(id, capacity uint32) error {
	if _, ok := s.rows[id]; ok {
		return fmt.Errorf("row %d: %w", id, domain.ErrSlotExists)
	}
	if s.maxRows > 0 && uint32(len(s.rows)) >= s.maxRows {
		return fmt.Errorf("shop holds %d/%d rows: %w", len(s.rows), s.maxRows, domain.ErrCapacityExceeded)
	}
	s.rows[id] = NewRow[T](capacity)
	return nil
}

func (s *Store[T]) AddRack(rowID, rackID, capacity uint32) error {
	row, ok := s.rows[rowID]
	if !ok {
		return fmt.Errorf("row %d: %w", rowID, domain.ErrLocationNotFound)
	}
	return row.AddRack(rackID, capacity)
}

func (s *Store[T]) AddZone(rowID, rackID, zoneID uint32) error {
	rack, err := s.rack(rowID, rackID)
	if err != nil {
		return err
	}
	return rack.AddZone(zoneID)
}

func (s *Store[T]) RowIDs() []uint32 { return sortedKeys(s.rows) }

// AddItem places item at loc, replacing whatever the zone held.
func (s *Store[T]) AddItem(item T, loc domain.Location) error {
	zone, err := s.zone(loc)
	if err != nil {
		return err
	}
	s.put(zone, item.Clone(), loc)
	return nil
}

// AddItemToNewZone opens the zone slot named by loc and places item in it.
// The rack's capacity applies, so a full rack rejects the item.
func (s *Store[T]) AddItemToNewZone(item T, loc domain.Location) error {
	if err := s.AddZone(loc.Row, loc.Rack, loc.Zone); err != nil {
		return err
	}
	return s.AddItem(item, loc)
}

// RemoveItem empties the zone at loc. An empty zone is left as is.
func (s *Store[T]) RemoveItem(loc domain.Location) error {
	zone, err := s.zone(loc)
	if err != nil {
		return err
	}
	if item, ok := zone.take(); ok {
		s.index.Remove(item.Name(), loc)
	}
	return nil
}

// GetItem returns a copy of the item at loc.
func (s *Store[T]) GetItem(loc domain.Location) (T, bool) {
	zone, err := s.zone(loc)
	if err != nil {
		var zero T
		return zero, false
	}
	return zone.Item()
}

// Update replaces the item at loc with fn's result. A rename moves the
// index entry to the new name. If fn fails the zone is left untouched.
func (s *Store[T]) Update(loc domain.Location, fn func(T) (T, error)) error {
	zone, err := s.zone(loc)
	if err != nil {
		return err
	}
	current, ok := zone.Item()
	if !ok {
		return fmt.Errorf("zone %s: %w", loc, domain.ErrItemNotFound)
	}
	next, err := fn(current)
	if err != nil {
		return fmt.Errorf("update item at %s: %w", loc, err)
	}
	s.put(zone, next.Clone(), loc)
	return nil
}

// MoveItem relocates the item at from to to. When to cannot take the item
// it goes back to from and ErrMoveFailed is returned.
func (s *Store[T]) MoveItem(from, to domain.Location) error {
	item, ok := s.GetItem(from)
	if !ok {
		return fmt.Errorf("move from %s: %w", from, domain.ErrItemNotFound)
	}
	if err := s.RemoveItem(from); err != nil {
		return fmt.Errorf("move from %s: %w", from, err)
	}
	if err := s.AddItem(item, to); err != nil {
		if rbErr := s.AddItem(item, from); rbErr != nil {
			// from resolved a moment ago; failing now means the shelves
			// changed under us.
			panic(fmt.Sprintf("store: rollback to %s failed: %v", from, rbErr))
		}
		return fmt.Errorf("%w: %s -> %s: %w", domain.ErrMoveFailed, from, to, err)
	}
	return nil
}

// LocationOf scans every zone for an item equal to item. It is the
// O(rows*racks*zones) counterpart of the name index.
func (s *Store[T]) LocationOf(item T) (domain.Location, bool) {
	var (
		found domain.Location
		hit   bool
	)
	s.walk(func(loc domain.Location, held T) bool {
		if held.Equal(item) {
			found, hit = loc, true
			return false
		}
		return true
	})
	return found, hit
}

// ItemsByName resolves the name index through the shelves. A listed location
// that no longer holds an item of that name is reported as ErrStaleIndex.
func (s *Store[T]) ItemsByName(name string) ([]T, error) {
	locs := s.index.Locations(name)
	items := make([]T, 0, len(locs))
	for _, loc := range locs {
		item, ok := s.GetItem(loc)
		if !ok || item.Name() != name {
			return nil, fmt.Errorf("%q at %s: %w", name, loc, domain.ErrStaleIndex)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store[T]) LocationsByName(name string) []domain.Location {
	return s.index.Locations(name)
}

// Names lists every indexed item name in ascending order.
func (s *Store[T]) Names() []string { return s.index.Names() }

// Placements lists every occupied zone ordered by row, rack and zone id.
func (s *Store[T]) Placements() []domain.Placement[T] {
	var out []domain.Placement[T]
	s.walk(func(loc domain.Location, item T) bool {
		out = append(out, domain.Placement[T]{Location: loc, Item: item})
		return true
	})
	return out
}

// Reindex rebuilds the name index from a full scan of the shelves.
func (s *Store[T]) Reindex() {
	s.index.reset()
	s.walk(func(loc domain.Location, item T) bool {
		s.index.Add(item.Name(), loc)
		return true
	})
}

// Stats summarises the shelf structure.
type Stats struct {
	Rows     int `json:"rows"`
	Racks    int `json:"racks"`
	Zones    int `json:"zones"`
	Occupied int `json:"occupied"`
	Names    int `json:"names"`
}

func (s *Store[T]) Stats() Stats {
	st := Stats{Rows: len(s.rows), Names: s.index.Len()}
	for _, row := range s.rows {
		st.Racks += row.Len()
		for _, rack := range row.racks {
			st.Zones += rack.Len()
			for _, zone := range rack.zones {
				if !zone.Empty() {
					st.Occupied++
				}
			}
		}
	}
	return st
}

func (s *Store[T]) put(zone *Zone[T], item T, loc domain.Location) {
	if prev, replaced := zone.put(item); replaced {
		s.index.Remove(prev.Name(), loc)
	}
	s.index.Add(item.Name(), loc)
}

func (s *Store[T]) rack(rowID, rackID uint32) (*Rack[T], error) {
	row, ok := s.rows[rowID]
	if !ok {
		return nil, fmt.Errorf("row %d: %w", rowID, domain.ErrLocationNotFound)
	}
	rack, ok := row.Rack(rackID)
	if !ok {
		return nil, fmt.Errorf("rack %d in row %d: %w", rackID, rowID, domain.ErrLocationNotFound)
	}
	return rack, nil
}

func (s *Store[T]) zone(loc domain.Location) (*Zone[T], error) {
	rack, err := s.rack(loc.Row, loc.Rack)
	if err != nil {
		return nil, err
	}
	zone, ok := rack.Zone(loc.Zone)
	if !ok {
		return nil, fmt.Errorf("zone %s: %w", loc, domain.ErrLocationNotFound)
	}
	return zone, nil
}

// walk visits occupied zones in id order until fn returns false.
func (s *Store[T]) walk(fn func(domain.Location, T) bool) {
	for _, rowID := range sortedKeys(s.rows) {
		row := s.rows[rowID]
		for _, rackID := range row.RackIDs() {
			rack := row.racks[rackID]
			for _, zoneID := range rack.ZoneIDs() {
				item, ok := rack.zones[zoneID].Item()
				if !ok {
					continue
				}
				if !fn(domain.Location{Row: rowID, Rack: rackID, Zone: zoneID}, item) {
					return
				}
			}
		}
	}
}
