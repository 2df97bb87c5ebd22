package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/minicommerce/fulfillment/internal/domain/order"
)

// OrderStore keeps order records in memory, partitioned by order ID.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
	}
}

// Upsert writes the record keyed by its ID. Writing the same fields again is
// a no-op; a record that already reached a terminal status is immutable.
func (s *OrderStore) Upsert(ctx context.Context, ord *domain.Order) error {
	_ = ctx
	if ord == nil || ord.ID == "" {
		return fmt.Errorf("order store: id is required")
	}
	if ord.ProductID == "" || ord.CustomerEmail == "" || ord.PaymentMethod == "" {
		return domain.ErrMissingField
	}
	if ord.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[ord.ID]; ok && existing.Status.Terminal() {
		if existing.Status == ord.Status {
			return nil
		}
		return domain.ErrTerminalState
	}

	s.orders[ord.ID] = ord.Clone()
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	ord, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ord.Clone(), nil
}
