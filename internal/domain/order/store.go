package order

import "context"

// Store persists order records keyed by order ID. Upsert must be idempotent
// per ID and must refuse to overwrite a record whose status is terminal.
type Store interface {
	Upsert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
}
