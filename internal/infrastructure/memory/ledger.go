package memory

import (
	"context"
	"sync"

	domain "github.com/minicommerce/fulfillment/internal/domain/inventory"
)

type product struct {
	stock        int
	reservations map[string]int // orderID -> reserved quantity
}

// Ledger is the in-process inventory ledger. The check and the decrement
// happen under one lock, so concurrent reservations for the same product are
// serialized and the sum of successful reservations never exceeds stock.
type Ledger struct {
	mu       sync.Mutex
	products map[string]*product
}

func NewLedger() *Ledger {
	return &Ledger{
		products: make(map[string]*product),
	}
}

// SetStock seeds or replaces the counter for a product.
func (l *Ledger) SetStock(productID string, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		p = &product{reservations: make(map[string]int)}
		l.products[productID] = p
	}
	p.stock = stock
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int, orderID string) (domain.ReserveOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if quantity <= 0 {
		return "", domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if _, applied := p.reservations[orderID]; applied {
		return domain.OutcomeAlreadyReserved, nil
	}
	if p.stock < quantity {
		return domain.OutcomeInsufficientStock, nil
	}

	p.stock -= quantity
	p.reservations[orderID] = quantity
	return domain.OutcomeReserved, nil
}

// Release returns a prior reservation to stock. Releasing an order that never
// reserved (or was already released) is a no-op.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		return nil
	}
	reserved, applied := p.reservations[orderID]
	if !applied {
		return nil
	}

	_ = quantity // the recorded reservation is authoritative
	p.stock += reserved
	delete(p.reservations, orderID)
	return nil
}

func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.stock, nil
}
