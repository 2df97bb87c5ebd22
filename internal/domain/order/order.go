package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
	ErrMissingField    = errors.New("order: required field missing")
	ErrTerminalState   = errors.New("order: record is terminal and immutable")
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusPersisted   Status = "persisted"
	StatusReserved    Status = "reserved"
	StatusCompleted   Status = "completed"
	StatusRejected    Status = "rejected"
	StatusCompensated Status = "compensated"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCompensated, StatusCancelled:
		return true
	}
	return false
}

// Order is the durable record of a single fulfillment attempt. The ID doubles
// as the idempotency key for every downstream write.
type Order struct {
	ID            string
	ProductID     string
	Quantity      int
	Amount        int64
	CustomerEmail string
	PaymentMethod string
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, productID, customerEmail, paymentMethod string, quantity int, amount int64) (*Order, error) {
	if id == "" || productID == "" || customerEmail == "" || paymentMethod == "" {
		return nil, ErrMissingField
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:            id,
		ProductID:     productID,
		Quantity:      quantity,
		Amount:        amount,
		CustomerEmail: customerEmail,
		PaymentMethod: paymentMethod,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (o *Order) MarkPersisted() error { return o.transition(StatusPersisted, "") }
func (o *Order) MarkReserved() error  { return o.transition(StatusReserved, "") }
func (o *Order) MarkCompleted() error { return o.transition(StatusCompleted, "") }

func (o *Order) MarkRejected(reason string) error    { return o.transition(StatusRejected, reason) }
func (o *Order) MarkCompensated(reason string) error { return o.transition(StatusCompensated, reason) }
func (o *Order) MarkCancelled(reason string) error   { return o.transition(StatusCancelled, reason) }

func (o *Order) transition(next Status, reason string) error {
	if o.Status.Terminal() {
		return ErrTerminalState
	}
	o.Status = next
	o.FailureReason = reason
	o.touch()
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}
