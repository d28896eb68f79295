package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is a lendable item. Quantity reports the copies still on the shelf.
type Book struct {
	UUID    uuid.UUID       `json:"uuid"`
	Title   string          `json:"title"`
	Author  string          `json:"author"`
	ISBN    string          `json:"isbn"`
	Cost    decimal.Decimal `json:"price"`
	InStock uint32          `json:"in_stock"`
	Lent    uint32          `json:"lent"`
}

func (b Book) Name() string           { return b.Title }
func (b Book) Quantity() uint32       { return b.InStock }
func (b Book) ID() uuid.UUID          { return b.UUID }
func (b Book) Price() decimal.Decimal { return b.Cost }
func (b Book) Clone() Book            { return b }

func (b Book) Equal(other Book) bool {
	return b.UUID == other.UUID &&
		b.Title == other.Title &&
		b.Author == other.Author &&
		b.ISBN == other.ISBN &&
		b.Cost.Equal(other.Cost) &&
		b.InStock == other.InStock &&
		b.Lent == other.Lent
}

// Borrow moves n copies from the shelf to the lent counter.
func (b Book) Borrow(n uint32) (Book, error) {
	if n == 0 {
		n = 1
	}
	if b.InStock < n {
		return b, ErrNotEnoughCopies
	}
	b.InStock -= n
	b.Lent += n
	return b, nil
}

// Return puts n lent copies back on the shelf.
func (b Book) Return(n uint32) (Book, error) {
	if n == 0 {
		n = 1
	}
	if b.Lent < n {
		return b, ErrNotEnoughCopies
	}
	b.Lent -= n
	b.InStock += n
	return b, nil
}
