package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	domain "github.com/minicommerce/fulfillment/internal/domain/inventory"
)

func TestLedgerReserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reserves and decrements stock", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)

		out, err := l.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != domain.OutcomeReserved {
			t.Fatalf("expected reserved, got %s", out)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 7 {
			t.Fatalf("expected stock 7, got %d", stock)
		}
	})

	t.Run("repeat reserve for the same order is acknowledged but not applied twice", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)

		if _, err := l.Reserve(ctx, "laptop", 3, "o-1"); err != nil {
			t.Fatalf("first reserve: %v", err)
		}
		out, err := l.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("second reserve: %v", err)
		}
		if out != domain.OutcomeAlreadyReserved {
			t.Fatalf("expected already_reserved, got %s", out)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 7 {
			t.Fatalf("expected stock still 7, got %d", stock)
		}
	})

	t.Run("insufficient stock is a clean outcome, not an error", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 2)

		out, err := l.Reserve(ctx, "laptop", 3, "o-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != domain.OutcomeInsufficientStock {
			t.Fatalf("expected insufficient_stock, got %s", out)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 2 {
			t.Fatalf("expected stock untouched, got %d", stock)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		l := NewLedger()
		if _, err := l.Reserve(ctx, "ghost", 1, "o-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)
		if _, err := l.Reserve(ctx, "laptop", 0, "o-1"); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestLedgerRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("release restores the recorded quantity", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)
		if _, err := l.Reserve(ctx, "laptop", 4, "o-1"); err != nil {
			t.Fatalf("reserve: %v", err)
		}

		if err := l.Release(ctx, "laptop", 4, "o-1"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 10 {
			t.Fatalf("expected stock restored to 10, got %d", stock)
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)
		_, _ = l.Reserve(ctx, "laptop", 4, "o-1")

		for i := 0; i < 3; i++ {
			if err := l.Release(ctx, "laptop", 4, "o-1"); err != nil {
				t.Fatalf("release %d: %v", i, err)
			}
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 10 {
			t.Fatalf("expected stock 10 after repeated release, got %d", stock)
		}
	})

	t.Run("release without a reservation is a no-op", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 10)

		if err := l.Release(ctx, "laptop", 4, "never-reserved"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := l.Release(ctx, "ghost", 4, "o-1"); err != nil {
			t.Fatalf("release unknown product: %v", err)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 10 {
			t.Fatalf("expected stock unchanged, got %d", stock)
		}
	})
}

func TestLedgerNoOversell(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("two orders racing for the last units", func(t *testing.T) {
		l := NewLedger()
		l.SetStock("laptop", 5)

		outcomes := make([]domain.ReserveOutcome, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := l.Reserve(ctx, "laptop", 3, fmt.Sprintf("o-%d", i))
				if err != nil {
					t.Errorf("reserve o-%d: %v", i, err)
					return
				}
				outcomes[i] = out
			}(i)
		}
		wg.Wait()

		reserved, short := 0, 0
		for _, out := range outcomes {
			switch out {
			case domain.OutcomeReserved:
				reserved++
			case domain.OutcomeInsufficientStock:
				short++
			}
		}
		if reserved != 1 || short != 1 {
			t.Fatalf("expected exactly one winner, got reserved=%d short=%d", reserved, short)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 2 {
			t.Fatalf("expected stock 2, got %d", stock)
		}
	})

	t.Run("many concurrent orders never exceed stock", func(t *testing.T) {
		const (
			initial = 50
			orders  = 200
			qty     = 1
		)
		l := NewLedger()
		l.SetStock("laptop", initial)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reserved int
		)
		for i := 0; i < orders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := l.Reserve(ctx, "laptop", qty, fmt.Sprintf("o-%d", i))
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
			t.Fatalf("expected %d successful reservations, got %d", initial, reserved)
		}
		if stock, _ := l.Stock(ctx, "laptop"); stock != 0 {
			t.Fatalf("expected stock exhausted, got %d", stock)
		}
	})
}

func TestLedgerContextCancelled(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.SetStock("laptop", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Reserve(ctx, "laptop", 1, "o-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if err := l.Release(ctx, "laptop", 1, "o-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
