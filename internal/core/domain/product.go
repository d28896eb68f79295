package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a perishable grocery item.
type Product struct {
	UUID      uuid.UUID       `json:"uuid"`
	Title     string          `json:"name"`
	Stock     uint32          `json:"quantity"`
	Cost      decimal.Decimal `json:"price"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func NewProduct(name string, quantity uint32, price decimal.Decimal, expiresAt time.Time) Product {
	return Product{
		UUID:      uuid.New(),
		Title:     name,
		Stock:     quantity,
		Cost:      price,
		ExpiresAt: expiresAt,
	}
}

func (p Product) Name() string           { return p.Title }
func (p Product) Quantity() uint32       { return p.Stock }
func (p Product) ID() uuid.UUID          { return p.UUID }
func (p Product) Price() decimal.Decimal { return p.Cost }
func (p Product) Clone() Product         { return p }

func (p Product) Equal(other Product) bool {
	return p.UUID == other.UUID &&
		p.Title == other.Title &&
		p.Stock == other.Stock &&
		p.Cost.Equal(other.Cost) &&
		p.ExpiresAt.Equal(other.ExpiresAt)
}

// Expired reports whether the product is past its expiration date at now.
func (p Product) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Restocked returns a copy with quantity adjusted by delta. The quantity
// never goes below zero.
func (p Product) Restocked(delta int64) (Product, error) {
	next := int64(p.Stock) + delta
	if next < 0 || next > int64(^uint32(0)) {
		return p, ErrInvalidQuantity
	}
	p.Stock = uint32(next)
	return p, nil
}

func (p Product) Repriced(price decimal.Decimal) (Product, error) {
	if price.IsNegative() {
		return p, ErrInvalidQuantity
	}
	p.Cost = price
	return p, nil
}

func (p Product) Renamed(name string) Product {
	p.Title = name
	return p
}
