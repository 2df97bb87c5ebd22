package saga

import "context"

// Store persists saga state keyed by order ID. ListActive returns every state
// whose status is not terminal, in no particular order.
type Store interface {
	Save(ctx context.Context, state *State) error
	Get(ctx context.Context, orderID string) (*State, error)
	ListActive(ctx context.Context) ([]*State, error)
}
