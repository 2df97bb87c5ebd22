package order

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid input starts pending", func(t *testing.T) {
		o, err := New("o-1", "laptop", "a@b.com", "creditCard", 2, 200)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.Status != StatusPending {
			t.Fatalf("expected status pending, got %s", o.Status)
		}
		if o.Amount != 200 {
			t.Fatalf("expected amount 200, got %d", o.Amount)
		}
		if o.CreatedAt.IsZero() || o.UpdatedAt.IsZero() {
			t.Fatalf("expected timestamps set")
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		cases := [][4]string{
			{"", "laptop", "a@b.com", "creditCard"},
			{"o-1", "", "a@b.com", "creditCard"},
			{"o-1", "laptop", "", "creditCard"},
			{"o-1", "laptop", "a@b.com", ""},
		}
		for _, c := range cases {
			if _, err := New(c[0], c[1], c[2], c[3], 1, 100); !errors.Is(err, ErrMissingField) {
				t.Fatalf("expected ErrMissingField for %v, got %v", c, err)
			}
		}
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		for _, q := range []int{0, -1} {
			if _, err := New("o-1", "laptop", "a@b.com", "creditCard", q, 100); !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("expected ErrInvalidQuantity for quantity %d, got %v", q, err)
			}
		}
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		if _, err := New("o-1", "laptop", "a@b.com", "creditCard", 1, -1); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	t.Run("forward path", func(t *testing.T) {
		o, _ := New("o-1", "laptop", "a@b.com", "creditCard", 1, 100)
		steps := []struct {
			mark func() error
			want Status
		}{
			{o.MarkPersisted, StatusPersisted},
			{o.MarkReserved, StatusReserved},
			{o.MarkCompleted, StatusCompleted},
		}
		for _, s := range steps {
			if err := s.mark(); err != nil {
				t.Fatalf("transition to %s failed: %v", s.want, err)
			}
			if o.Status != s.want {
				t.Fatalf("expected status %s, got %s", s.want, o.Status)
			}
		}
	})

	t.Run("terminal record is immutable", func(t *testing.T) {
		o, _ := New("o-1", "laptop", "a@b.com", "creditCard", 1, 100)
		if err := o.MarkRejected("insufficient stock"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.FailureReason != "insufficient stock" {
			t.Fatalf("expected failure reason recorded, got %q", o.FailureReason)
		}

		for _, mark := range []func() error{
			o.MarkPersisted,
			o.MarkReserved,
			o.MarkCompleted,
			func() error { return o.MarkCompensated("timeout") },
			func() error { return o.MarkCancelled("user") },
		} {
			if err := mark(); !errors.Is(err, ErrTerminalState) {
				t.Fatalf("expected ErrTerminalState, got %v", err)
			}
		}
		if o.Status != StatusRejected {
			t.Fatalf("terminal status changed to %s", o.Status)
		}
	})

	t.Run("compensated carries reason", func(t *testing.T) {
		o, _ := New("o-1", "laptop", "a@b.com", "creditCard", 1, 100)
		_ = o.MarkReserved()
		if err := o.MarkCompensated("reserve exhausted"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.Status != StatusCompensated || o.FailureReason != "reserve exhausted" {
			t.Fatalf("unexpected record: %+v", o)
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusCompleted, StatusRejected, StatusCompensated, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusPersisted, StatusReserved} {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	o, _ := New("o-1", "laptop", "a@b.com", "creditCard", 1, 100)
	c := o.Clone()
	c.Status = StatusCancelled
	if o.Status != StatusPending {
		t.Fatalf("clone mutation leaked into original")
	}

	var nilOrder *Order
	if nilOrder.Clone() != nil {
		t.Fatalf("expected nil clone for nil order")
	}
}
