package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// SetStock publishes the total shelved quantity per item name
	SetStock(ctx context.Context, stock map[string]uint32) error

	// GetStock reads back a published total, ok is false if never published
	GetStock(ctx context.Context, name string) (qty uint32, ok bool, err error)
}
