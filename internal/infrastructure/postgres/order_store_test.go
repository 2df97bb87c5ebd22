package postgres

import (
	"context"
	"errors"
	"testing"

	domain "github.com/minicommerce/fulfillment/internal/domain/order"
)

func TestOrderStore(t *testing.T) {
	pool := newTestPool(t)
	store := NewOrderStore(pool)
	ctx := context.Background()

	newOrder := func(t *testing.T, id string) *domain.Order {
		t.Helper()
		o, err := domain.New(id, "laptop", "a@b.com", "creditCard", 2, 200)
		if err != nil {
			t.Fatalf("new order: %v", err)
		}
		return o
	}

	t.Run("upsert then get", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		o := newOrder(t, "o-1")

		if err := store.Upsert(ctx, o); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		got, err := store.Get(ctx, "o-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ID != "o-1" || got.Amount != 200 || got.Status != domain.StatusPending {
			t.Fatalf("unexpected record: %+v", got)
		}
	})

	t.Run("repeat upsert is idempotent", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		o := newOrder(t, "o-1")
		for i := 0; i < 3; i++ {
			if err := store.Upsert(ctx, o); err != nil {
				t.Fatalf("upsert %d: %v", i, err)
			}
		}

		_ = o.MarkPersisted()
		if err := store.Upsert(ctx, o); err != nil {
			t.Fatalf("status progression: %v", err)
		}
		got, _ := store.Get(ctx, "o-1")
		if got.Status != domain.StatusPersisted {
			t.Fatalf("expected persisted, got %s", got.Status)
		}
	})

	t.Run("terminal row refuses a different status", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		o := newOrder(t, "o-1")
		_ = o.MarkCompleted()
		if err := store.Upsert(ctx, o); err != nil {
			t.Fatalf("upsert terminal: %v", err)
		}

		rewrite := o.Clone()
		rewrite.Status = domain.StatusPending
		if err := store.Upsert(ctx, rewrite); !errors.Is(err, domain.ErrTerminalState) {
			t.Fatalf("expected ErrTerminalState, got %v", err)
		}

		if err := store.Upsert(ctx, o); err != nil {
			t.Fatalf("idempotent terminal write: %v", err)
		}
		got, _ := store.Get(ctx, "o-1")
		if got.Status != domain.StatusCompleted {
			t.Fatalf("expected completed, got %s", got.Status)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		truncateAll(t, ctx, pool)
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid records rejected before hitting the database", func(t *testing.T) {
		if err := store.Upsert(ctx, nil); err == nil {
			t.Fatalf("expected error for nil order")
		}
		o := newOrder(t, "o-1")
		o.CustomerEmail = ""
		if err := store.Upsert(ctx, o); !errors.Is(err, domain.ErrMissingField) {
			t.Fatalf("expected ErrMissingField, got %v", err)
		}
	})
}
