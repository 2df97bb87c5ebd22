package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	domain "github.com/minicommerce/fulfillment/internal/domain/inventory"
)

func TestLedger(t *testing.T) {
	pool := newTestPool(t)
	ledger := NewLedger(pool)
	ctx := context.Background()

	t.Run("reserve decrements stock once per order", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		if err := ledger.SetStock(ctx, "laptop", 10); err != nil {
			t.Fatalf("set stock: %v", err)
		}

		out, err := ledger.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if out != domain.OutcomeReserved {
			t.Fatalf("expected reserved, got %s", out)
		}

		out, err = ledger.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("repeat reserve: %v", err)
		}
		if out != domain.OutcomeAlreadyReserved {
			t.Fatalf("expected already_reserved, got %s", out)
		}

		if stock, _ := ledger.Stock(ctx, "laptop"); stock != 7 {
			t.Fatalf("expected stock 7, got %d", stock)
		}
	})

	t.Run("insufficient stock rolls the claim back", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		_ = ledger.SetStock(ctx, "laptop", 2)

		out, err := ledger.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if out != domain.OutcomeInsufficientStock {
			t.Fatalf("expected insufficient_stock, got %s", out)
		}
		if stock, _ := ledger.Stock(ctx, "laptop"); stock != 2 {
			t.Fatalf("expected stock untouched, got %d", stock)
		}

		// The claim was rolled back, so a smaller retry can still win.
		out, err = ledger.Reserve(ctx, "laptop", 2, "o-1")
		if err != nil {
			t.Fatalf("retry reserve: %v", err)
		}
		if out != domain.OutcomeReserved {
			t.Fatalf("expected reserved after rollback, got %s", out)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		if _, err := ledger.Reserve(ctx, "ghost", 1, "o-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := ledger.Stock(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("release restores stock and is idempotent", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		_ = ledger.SetStock(ctx, "laptop", 10)
		if _, err := ledger.Reserve(ctx, "laptop", 4, "o-1"); err != nil {
			t.Fatalf("reserve: %v", err)
		}

		for i := 0; i < 3; i++ {
			if err := ledger.Release(ctx, "laptop", 4, "o-1"); err != nil {
				t.Fatalf("release %d: %v", i, err)
			}
		}
		if stock, _ := ledger.Stock(ctx, "laptop"); stock != 10 {
			t.Fatalf("expected stock restored, got %d", stock)
		}

		if err := ledger.Release(ctx, "laptop", 4, "never-reserved"); err != nil {
			t.Fatalf("release without reservation: %v", err)
		}
	})

	t.Run("ensure stock never resets a live counter", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		if err := ledger.EnsureStock(ctx, "laptop", 10); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if _, err := ledger.Reserve(ctx, "laptop", 4, "o-1"); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if err := ledger.EnsureStock(ctx, "laptop", 10); err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		if stock, _ := ledger.Stock(ctx, "laptop"); stock != 6 {
			t.Fatalf("expected stock 6, got %d", stock)
		}
	})

	t.Run("concurrent reservations never oversell", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		const initial = 20
		_ = ledger.SetStock(ctx, "laptop", initial)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reserved int
		)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := ledger.Reserve(ctx, "laptop", 1, fmt.Sprintf("o-%d", i))
				if err != nil {
					t.Errorf("reserve o-%d: %v", i, err)
					return
				}
				if out == domain.OutcomeReserved {
					mu.Lock()
					reserved++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if reserved != initial {
			t.Fatalf("expected %d reservations, got %d", initial, reserved)
		}
		if stock, _ := ledger.Stock(ctx, "laptop"); stock != 0 {
			t.Fatalf("expected stock 0, got %d", stock)
		}
	})
}
