package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// ReserveOutcome is the result of an atomic check-and-reserve attempt.
type ReserveOutcome string

const (
	OutcomeReserved          ReserveOutcome = "reserved"
	OutcomeAlreadyReserved   ReserveOutcome = "already_reserved"
	OutcomeInsufficientStock ReserveOutcome = "insufficient_stock"
)

// Ledger owns per-product stock counters.
//
// Reserve checks and decrements stock as one indivisible operation per
// product; a repeat call with the same orderID returns OutcomeAlreadyReserved
// without touching stock again. OutcomeInsufficientStock is a terminal
// business outcome, not an error. Release undoes a prior reservation and is a
// no-op when none exists for the orderID.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int, orderID string) (ReserveOutcome, error)
	Release(ctx context.Context, productID string, quantity int, orderID string) error
	Stock(ctx context.Context, productID string) (int, error)
}

type Item struct {
	ProductID string
	Stock     int
	UpdatedAt time.Time
}

func NewItem(productID string, stock int) (*Item, error) {
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Item{
		ProductID: productID,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
