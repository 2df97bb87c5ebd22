package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/minicommerce/fulfillment/internal/domain/order"
)

// OrderStore is the Postgres order record store. Upsert is idempotent per
// order ID and leaves terminal rows untouched.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) Upsert(ctx context.Context, ord *domain.Order) error {
	if ord == nil || ord.ID == "" {
		return fmt.Errorf("order store: id is required")
	}
	if ord.ProductID == "" || ord.CustomerEmail == "" || ord.PaymentMethod == "" {
		return domain.ErrMissingField
	}
	if ord.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	const stmt = `
INSERT INTO orders (id, product_id, quantity, amount, customer_email, payment_method, status, failure_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE
SET product_id = EXCLUDED.product_id,
    quantity = EXCLUDED.quantity,
    amount = EXCLUDED.amount,
    customer_email = EXCLUDED.customer_email,
    payment_method = EXCLUDED.payment_method,
    status = EXCLUDED.status,
    failure_reason = EXCLUDED.failure_reason,
    updated_at = EXCLUDED.updated_at
WHERE orders.status NOT IN ('completed', 'rejected', 'compensated', 'cancelled')`

	tag, err := s.pool.Exec(ctx, stmt,
		ord.ID,
		ord.ProductID,
		ord.Quantity,
		ord.Amount,
		ord.CustomerEmail,
		ord.PaymentMethod,
		ord.Status,
		ord.FailureReason,
		ord.CreatedAt,
		ord.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// A terminal row blocked the update; re-writing the same terminal
		// status is a legitimate retry, anything else is a violation.
		existing, gerr := s.Get(ctx, ord.ID)
		if gerr != nil {
			return gerr
		}
		if existing.Status == ord.Status {
			return nil
		}
		return domain.ErrTerminalState
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	const query = `
SELECT id, product_id, quantity, amount, customer_email, payment_method, status, failure_reason, created_at, updated_at
FROM orders
WHERE id = $1`

	var ord domain.Order
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&ord.ID,
		&ord.ProductID,
		&ord.Quantity,
		&ord.Amount,
		&ord.CustomerEmail,
		&ord.PaymentMethod,
		&ord.Status,
		&ord.FailureReason,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &ord, nil
}
