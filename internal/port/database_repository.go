package port

import (
	"context"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

type DatabaseRepository interface {
	// RecordMovement appends a committed shelf change to the journal
	RecordMovement(ctx context.Context, m domain.Movement) error

	// ListMovements returns the most recent journal entries, newest first
	ListMovements(ctx context.Context, limit int) ([]domain.Movement, error)

	// SaveSnapshot replaces the stored placements with the given ones
	SaveSnapshot(ctx context.Context, placements []domain.Placement[domain.Product]) error

	// LoadSnapshot returns the stored placements
	LoadSnapshot(ctx context.Context) ([]domain.Placement[domain.Product], error)
}
