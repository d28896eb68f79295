package store

import (
	"slices"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

// NameIndex maps an item name to the locations currently holding an item of
// that name. It only stores coordinates and can always be rebuilt from the
// shelves.
type NameIndex struct {
	byName map[string][]domain.Location
}

func NewNameIndex() *NameIndex {
	return &NameIndex{byName: make(map[string][]domain.Location)}
}

// Add records loc under name. A location is listed at most once per name.
func (ix *NameIndex) Add(name string, loc domain.Location) {
	locs := ix.byName[name]
	if slices.Contains(locs, loc) {
		return
	}
	ix.byName[name] = append(locs, loc)
}

// Remove drops loc from name, pruning the key once it is empty.
func (ix *NameIndex) Remove(name string, loc domain.Location) {
	locs, ok := ix.byName[name]
	if !ok {
		return
	}
	locs = slices.DeleteFunc(locs, func(l domain.Location) bool { return l == loc })
	if len(locs) == 0 {
		delete(ix.byName, name)
		return
	}
	ix.byName[name] = locs
}

// Locations returns a copy of the locations listed under name.
func (ix *NameIndex) Locations(name string) []domain.Location {
	return slices.Clone(ix.byName[name])
}

func (ix *NameIndex) Names() []string {
	return sortedKeys(ix.byName)
}

func (ix *NameIndex) Len() int { return len(ix.byName) }

func (ix *NameIndex) reset() {
	clear(ix.byName)
}
