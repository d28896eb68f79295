package store

import (
	"fmt"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

// Layout describes the physical shelving of a shop.
type Layout struct {
	MaxRows uint32      `yaml:"max_rows" json:"max_rows"`
	Rows    []RowLayout `yaml:"rows" json:"rows"`
}

type RowLayout struct {
	ID       uint32       `yaml:"id" json:"id"`
	Capacity uint32       `yaml:"capacity" json:"capacity"`
	Racks    []RackLayout `yaml:"racks" json:"racks"`
}

type RackLayout struct {
	ID       uint32   `yaml:"id" json:"id"`
	Capacity uint32   `yaml:"capacity" json:"capacity"`
	Zones    []uint32 `yaml:"zones" json:"zones"`
}

// GridLayout is a rectangular layout: rows x racks x zones with every
// container capped at capacity.
func GridLayout(rows, racks, zones, capacity uint32) Layout {
	var l Layout
	for r := uint32(0); r < rows; r++ {
		row := RowLayout{ID: r, Capacity: capacity}
		for k := uint32(0); k < racks; k++ {
			rack := RackLayout{ID: k, Capacity: capacity}
			for z := uint32(0); z < zones; z++ {
				rack.Zones = append(rack.Zones, z)
			}
			row.Racks = append(row.Racks, rack)
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

// DefaultLayout is the three-aisle shop: 3 rows of 2 racks of 2 zones, every
// container capped at 2.
func DefaultLayout() Layout { return GridLayout(3, 2, 2, 2) }

// Initialize builds the shelving described by l. It stops at the first
// structural error, leaving what was built so far in place.
func (s *Store[T]) Initialize(l Layout) error {
	if l.MaxRows > 0 {
		s.maxRows = l.MaxRows
	}
	for _, row := range l.Rows {
		if err := s.AddRow(row.ID, row.Capacity); err != nil {
			return fmt.Errorf("layout row %d: %w", row.ID, err)
		}
		for _, rack := range row.Racks {
			if err := s.AddRack(row.ID, rack.ID, rack.Capacity); err != nil {
				return fmt.Errorf("layout row %d: %w", row.ID, err)
			}
			for _, zone := range rack.Zones {
				if err := s.AddZone(row.ID, rack.ID, zone); err != nil {
					return fmt.Errorf("layout row %d rack %d: %w", row.ID, rack.ID, err)
				}
			}
		}
	}
	return nil
}

// NewGrid returns a store initialised with GridLayout. It fails when racks
// or zones exceed capacity.
func NewGrid[T domain.Item[T]](rows, racks, zones, capacity uint32) (*Store[T], error) {
	s := New[T]()
	if err := s.Initialize(GridLayout(rows, racks, zones, capacity)); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout reports the current shelving, items aside.
func (s *Store[T]) Layout() Layout {
	l := Layout{MaxRows: s.maxRows}
	for _, rowID := range s.RowIDs() {
		row := s.rows[rowID]
		rl := RowLayout{ID: rowID, Capacity: row.Capacity()}
		for _, rackID := range row.RackIDs() {
			rack := row.racks[rackID]
			rl.Racks = append(rl.Racks, RackLayout{ID: rackID, Capacity: rack.Capacity(), Zones: rack.ZoneIDs()})
		}
		l.Rows = append(l.Rows, rl)
	}
	return l
}
