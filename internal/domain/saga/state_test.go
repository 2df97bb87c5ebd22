package saga

import (
	"testing"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	st := NewState("o-1", OrderInfo{ProductID: "laptop", Quantity: 2, Amount: 200})
	if st.Status != StatusRunning {
		t.Fatalf("expected running, got %s", st.Status)
	}
	if st.Version != StateVersion {
		t.Fatalf("expected version %d, got %d", StateVersion, st.Version)
	}
	if st.Order.Amount != 200 {
		t.Fatalf("expected snapshot amount 200, got %d", st.Order.Amount)
	}
}

func TestNextStep(t *testing.T) {
	t.Parallel()

	st := NewState("o-1", OrderInfo{})
	for i, step := range Sequence {
		next, ok := st.NextStep()
		if !ok {
			t.Fatalf("expected a next step at position %d", i)
		}
		if next != step {
			t.Fatalf("expected next step %s, got %s", step, next)
		}
		st.Complete(step, StepResult{Outcome: OutcomeDone, Attempts: 1})
	}
	if _, ok := st.NextStep(); ok {
		t.Fatalf("expected no next step after full sequence")
	}
}

func TestCompleteAndResult(t *testing.T) {
	t.Parallel()

	st := NewState("o-1", OrderInfo{})
	st.Complete(StepNotify, StepResult{Outcome: OutcomeSoftFailed, Attempts: 2, Error: "broker down"})

	if !st.Done(StepNotify) {
		t.Fatalf("expected notify to count as done")
	}
	res, ok := st.Result(StepNotify)
	if !ok {
		t.Fatalf("expected recorded result")
	}
	if res.Outcome != OutcomeSoftFailed || res.Attempts != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CompletedAt.IsZero() {
		t.Fatalf("expected CompletedAt backfilled")
	}
	if st.Done(StepReserve) {
		t.Fatalf("reserve should not be done")
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	if StatusRunning.Terminal() {
		t.Fatalf("running must not be terminal")
	}
	if StatusCompensating.Terminal() {
		t.Fatalf("compensating must not be terminal; recovery has to resume it")
	}
	for _, s := range []Status{
		StatusCompleted, StatusValidationFailed, StatusReservationFailed,
		StatusCompensatedFailed, StatusCancelled, StatusFailed,
	} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}

func TestSoftSteps(t *testing.T) {
	t.Parallel()

	for _, step := range []Step{StepValidate, StepPersist, StepReserve} {
		if step.Soft() {
			t.Fatalf("expected %s to be hard", step)
		}
	}
	for _, step := range []Step{StepNotify, StepArchive} {
		if !step.Soft() {
			t.Fatalf("expected %s to be soft", step)
		}
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	st := NewState("o-1", OrderInfo{ProductID: "laptop"})
	st.Complete(StepValidate, StepResult{Outcome: OutcomeDone, Attempts: 1})
	st.Warn("stock low")

	c := st.Clone()
	c.Complete(StepPersist, StepResult{Outcome: OutcomeDone, Attempts: 1})
	c.Warn("second warning")
	c.Finish(StatusCompleted)

	if st.Done(StepPersist) {
		t.Fatalf("clone step completion leaked into original")
	}
	if len(st.Warnings) != 1 {
		t.Fatalf("clone warning leaked into original: %v", st.Warnings)
	}
	if st.Status != StatusRunning {
		t.Fatalf("clone finish leaked into original")
	}
}
