package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/minicommerce/fulfillment/internal/domain/inventory"
)

// Ledger is the Postgres inventory ledger. The reserve is one transaction:
// claim the (product, order) pair, then decrement stock conditionally. The
// database serializes concurrent reservations on the product row, so stock
// never goes below zero regardless of caller interleaving.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int, orderID string) (domain.ReserveOutcome, error) {
	if quantity <= 0 {
		return "", domain.ErrInvalidQuantity
	}

	var outcome domain.ReserveOutcome
	err := withTx(ctx, l.pool, func(ctx context.Context) error {
		const claim = `
INSERT INTO inventory_reservations (product_id, order_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (product_id, order_id) DO NOTHING`

		tag, err := l.exec(ctx, claim, productID, orderID, quantity)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("claim reservation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			outcome = domain.OutcomeAlreadyReserved
			return nil
		}

		const decrement = `
UPDATE inventory
SET stock = stock - $2, updated_at = NOW()
WHERE product_id = $1 AND stock >= $2`

		tag, err = l.exec(ctx, decrement, productID, quantity)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Insufficient stock: abort so the claim rolls back with it.
			outcome = domain.OutcomeInsufficientStock
			return domain.ErrInsufficientStock
		}

		outcome = domain.OutcomeReserved
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return domain.OutcomeInsufficientStock, nil
		}
		return "", err
	}
	return outcome, nil
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int, orderID string) error {
	_ = quantity // the recorded reservation is authoritative
	return withTx(ctx, l.pool, func(ctx context.Context) error {
		const drop = `
DELETE FROM inventory_reservations
WHERE product_id = $1 AND order_id = $2
RETURNING quantity`

		var reserved int
		err := l.queryRow(ctx, drop, productID, orderID).Scan(&reserved)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil // nothing reserved for this order
			}
			return fmt.Errorf("drop reservation: %w", err)
		}

		const restore = `
UPDATE inventory
SET stock = stock + $2, updated_at = NOW()
WHERE product_id = $1`

		if _, err := l.exec(ctx, restore, productID, reserved); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		return nil
	})
}

func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	const query = `SELECT stock FROM inventory WHERE product_id = $1`

	var stock int
	if err := l.queryRow(ctx, query, productID).Scan(&stock); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// EnsureStock seeds the counter for a product only when it does not exist yet,
// so a restart never resets a live counter.
func (l *Ledger) EnsureStock(ctx context.Context, productID string, stock int) error {
	const stmt = `
INSERT INTO inventory (product_id, stock, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (product_id) DO NOTHING`

	if _, err := l.exec(ctx, stmt, productID, stock); err != nil {
		return fmt.Errorf("ensure stock: %w", err)
	}
	return nil
}

// SetStock seeds or replaces the counter for a product.
func (l *Ledger) SetStock(ctx context.Context, productID string, stock int) error {
	const stmt = `
INSERT INTO inventory (product_id, stock, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (product_id) DO UPDATE SET stock = EXCLUDED.stock, updated_at = NOW()`

	if _, err := l.exec(ctx, stmt, productID, stock); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

func (l *Ledger) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return l.pool.Exec(ctx, sql, args...)
}

func (l *Ledger) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return l.pool.QueryRow(ctx, sql, args...)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
