package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/minicommerce/fulfillment/internal/domain/saga"
)

// SagaStore keeps saga state in memory. States are retained after they reach
// a terminal status (audit trail); ListActive filters them out.
type SagaStore struct {
	mu     sync.RWMutex
	states map[string]*domain.State
}

func NewSagaStore() *SagaStore {
	return &SagaStore{
		states: make(map[string]*domain.State),
	}
}

func (s *SagaStore) Save(ctx context.Context, state *domain.State) error {
	_ = ctx
	if state == nil || state.OrderID == "" {
		return fmt.Errorf("saga store: order id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.states[state.OrderID]; ok && existing.Status.Terminal() {
		if existing.Status == state.Status {
			return nil
		}
		return domain.ErrTerminalState
	}

	s.states[state.OrderID] = state.Clone()
	return nil
}

func (s *SagaStore) Get(ctx context.Context, orderID string) (*domain.State, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

func (s *SagaStore) ListActive(ctx context.Context) ([]*domain.State, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*domain.State, 0)
	for _, state := range s.states {
		if !state.Status.Terminal() {
			active = append(active, state.Clone())
		}
	}
	return active, nil
}
