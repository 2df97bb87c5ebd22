package saga

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("saga: state not found")

	// ErrTerminalState rejects a write that would move a finished saga to a
	// different status.
	ErrTerminalState = errors.New("saga: state is terminal and immutable")
)

// StateVersion is bumped whenever the persisted State layout changes so a
// recovering coordinator can tell which schema it is reading.
const StateVersion = 1

type Step string

const (
	StepValidate Step = "validate"
	StepPersist  Step = "persist"
	StepReserve  Step = "reserve"
	StepNotify   Step = "notify"
	StepArchive  Step = "archive"

	// StepComplete labels the final order-record write. It is not part of
	// Sequence: completion is implied by the terminal status, not tracked as
	// a resumable step.
	StepComplete Step = "complete"
)

// Sequence is the fixed forward order of the fulfillment pipeline.
var Sequence = []Step{StepValidate, StepPersist, StepReserve, StepNotify, StepArchive}

// Soft reports whether a step's failure is tolerated without compensation.
func (s Step) Soft() bool {
	return s == StepNotify || s == StepArchive
}

type Status string

const (
	StatusRunning Status = "running"
	// StatusCompensating marks a saga whose reservation is being handed back.
	// It is durable before the first release attempt, so a crash mid-release
	// resumes the compensation instead of re-running the pipeline forward.
	StatusCompensating      Status = "compensating"
	StatusCompleted         Status = "completed"
	StatusValidationFailed  Status = "validation_failed"
	StatusReservationFailed Status = "reservation_failed"
	StatusCompensatedFailed Status = "compensated_failed"
	StatusCancelled         Status = "cancelled"
	StatusFailed            Status = "failed"
)

func (s Status) Terminal() bool {
	return s != StatusRunning && s != StatusCompensating
}

type StepOutcome string

const (
	OutcomeDone       StepOutcome = "done"
	OutcomeSoftFailed StepOutcome = "soft_failed"
)

// StepResult records the completion of a single step. Soft steps complete
// with OutcomeSoftFailed when their retries run out.
type StepResult struct {
	Outcome     StepOutcome
	Attempts    int
	Error       string
	Detail      string
	CompletedAt time.Time
}

// OrderInfo is the snapshot of accumulated order fields carried on the state
// so recovery never depends on the original request being replayed.
type OrderInfo struct {
	ProductID     string
	Quantity      int
	Amount        int64
	CustomerEmail string
	PaymentMethod string
}

// State is the per-order saga record. It is owned exclusively by the
// coordinator; no other component mutates it.
type State struct {
	OrderID   string
	Version   int
	Status    Status
	Order     OrderInfo
	Steps     map[Step]StepResult
	Warnings  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewState(orderID string, info OrderInfo) *State {
	now := time.Now().UTC()
	return &State{
		OrderID:   orderID,
		Version:   StateVersion,
		Status:    StatusRunning,
		Order:     info,
		Steps:     make(map[Step]StepResult),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete records the outcome of a step.
func (s *State) Complete(step Step, res StepResult) {
	if s.Steps == nil {
		s.Steps = make(map[Step]StepResult)
	}
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now().UTC()
	}
	s.Steps[step] = res
	s.touch()
}

// Done reports whether the step has already completed (in any outcome).
func (s *State) Done(step Step) bool {
	_, ok := s.Steps[step]
	return ok
}

func (s *State) Result(step Step) (StepResult, bool) {
	res, ok := s.Steps[step]
	return res, ok
}

// NextStep returns the first step of the sequence that has not completed.
func (s *State) NextStep() (Step, bool) {
	for _, step := range Sequence {
		if !s.Done(step) {
			return step, true
		}
	}
	return "", false
}

func (s *State) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
	s.touch()
}

// Finish records a coordinator-decided status transition.
func (s *State) Finish(status Status) {
	s.Status = status
	s.touch()
}

func (s *State) touch() {
	s.UpdatedAt = time.Now().UTC()
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Steps = make(map[Step]StepResult, len(s.Steps))
	for k, v := range s.Steps {
		clone.Steps[k] = v
	}
	clone.Warnings = append([]string(nil), s.Warnings...)
	return &clone
}
