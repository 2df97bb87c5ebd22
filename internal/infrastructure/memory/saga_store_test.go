package memory

import (
	"context"
	"errors"
	"testing"

	domain "github.com/minicommerce/fulfillment/internal/domain/saga"
)

func TestSagaStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := NewSagaStore()
		st := domain.NewState("o-1", domain.OrderInfo{ProductID: "laptop", Quantity: 1})

		if err := s.Save(ctx, st); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Get(ctx, "o-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.OrderID != "o-1" || got.Status != domain.StatusRunning {
			t.Fatalf("unexpected state: %+v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		s := NewSagaStore()
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list active excludes terminal states", func(t *testing.T) {
		s := NewSagaStore()

		running := domain.NewState("o-1", domain.OrderInfo{})
		compensating := domain.NewState("o-2", domain.OrderInfo{})
		compensating.Finish(domain.StatusCompensating)
		done := domain.NewState("o-3", domain.OrderInfo{})
		done.Finish(domain.StatusCompleted)
		failed := domain.NewState("o-4", domain.OrderInfo{})
		failed.Finish(domain.StatusCompensatedFailed)

		for _, st := range []*domain.State{running, compensating, done, failed} {
			if err := s.Save(ctx, st); err != nil {
				t.Fatalf("save %s: %v", st.OrderID, err)
			}
		}

		active, err := s.ListActive(ctx)
		if err != nil {
			t.Fatalf("list active: %v", err)
		}
		if len(active) != 2 {
			t.Fatalf("expected o-1 and o-2 active, got %+v", active)
		}
	})

	t.Run("terminal state refuses a different status", func(t *testing.T) {
		s := NewSagaStore()
		st := domain.NewState("o-1", domain.OrderInfo{})
		st.Finish(domain.StatusCancelled)
		if err := s.Save(ctx, st); err != nil {
			t.Fatalf("save terminal: %v", err)
		}

		rewrite := st.Clone()
		rewrite.Finish(domain.StatusCompleted)
		if err := s.Save(ctx, rewrite); !errors.Is(err, domain.ErrTerminalState) {
			t.Fatalf("expected ErrTerminalState, got %v", err)
		}

		if err := s.Save(ctx, st); err != nil {
			t.Fatalf("idempotent terminal write: %v", err)
		}
		got, _ := s.Get(ctx, "o-1")
		if got.Status != domain.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", got.Status)
		}
	})

	t.Run("stored state is isolated from caller mutation", func(t *testing.T) {
		s := NewSagaStore()
		st := domain.NewState("o-1", domain.OrderInfo{})
		_ = s.Save(ctx, st)

		st.Finish(domain.StatusCompleted)
		got, _ := s.Get(ctx, "o-1")
		if got.Status != domain.StatusRunning {
			t.Fatalf("caller mutation leaked into store")
		}
	})
}
