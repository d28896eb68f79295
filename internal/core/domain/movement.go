package domain

import "time"

type MovementKind string

const (
	MovementAdded   MovementKind = "added"
	MovementRemoved MovementKind = "removed"
	MovementMoved   MovementKind = "moved"
	MovementEdited  MovementKind = "edited"
)

// Movement is a committed change on the shelves, recorded in the journal.
type Movement struct {
	ID        string
	Kind      MovementKind
	ItemID    string
	ItemName  string
	Quantity  uint32
	From      *Location
	To        *Location
	CreatedAt time.Time
}
